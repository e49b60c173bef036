package wasip1

import (
	"path"
	"strings"
)

// PreopenTable resolves a guest-relative path against the directories the
// host made available at startup, generalizing the logical-path-to-physical
// -path map package filesystem/preopens.go built for the Component Model's
// directory-handle list into the (parent_fd, relative_path) pair
// path_open's translation actually consumes (§4.I, §5.J).
type PreopenTable struct {
	// order is kept alongside the map so resolution prefers the most
	// specific (longest) matching preopened path deterministically.
	order []string
	dirs  map[string]preopenEntry
}

type preopenEntry struct {
	fd       uint32
	physical string
}

// NewPreopenTable builds a table from logical-path -> physical-path entries,
// assigning each one the next WASI fd starting at firstFD (callers normally
// reserve 0-2 for stdio and start preopens at 3).
func NewPreopenTable(firstFD uint32, dirs map[string]string) *PreopenTable {
	t := &PreopenTable{dirs: make(map[string]preopenEntry, len(dirs))}
	fd := firstFD
	for logical, physical := range dirs {
		clean := path.Clean(logical)
		t.dirs[clean] = preopenEntry{fd: fd, physical: physical}
		t.order = append(t.order, clean)
		fd++
	}
	// Longest logical path first so "/var/log" is preferred over "/" for a
	// guest path of "/var/log/app.log".
	for i := 1; i < len(t.order); i++ {
		for j := i; j > 0 && len(t.order[j]) > len(t.order[j-1]); j-- {
			t.order[j], t.order[j-1] = t.order[j-1], t.order[j]
		}
	}
	return t
}

// Resolve maps a guest path to the preopen fd that contains it and the path
// relative to that preopen's root. It returns ok == false (ErrnoNoent at the
// call site) if no preopen covers guestPath.
func (t *PreopenTable) Resolve(guestPath string) (parentFD uint32, relative string, ok bool) {
	clean := path.Clean(guestPath)
	for _, logical := range t.order {
		if logical == "/" {
			if rel := strings.TrimPrefix(clean, "/"); true {
				return t.dirs[logical].fd, rel, true
			}
		}
		if clean == logical {
			return t.dirs[logical].fd, ".", true
		}
		if strings.HasPrefix(clean, logical+"/") {
			return t.dirs[logical].fd, strings.TrimPrefix(clean, logical+"/"), true
		}
	}
	return 0, "", false
}

// Physical returns the real host path a preopen's fd maps to, joined with a
// relative path resolved against it - the actual filesystem path OpenFile
// hands to os.OpenFile.
func (t *PreopenTable) Physical(parentFD uint32, relative string) (string, bool) {
	for _, e := range t.dirs {
		if e.fd == parentFD {
			return path.Join(e.physical, relative), true
		}
	}
	return "", false
}

// Prestats returns every preopen's (fd, logical path) pair, the shape
// fd_prestat_get/fd_prestat_dir_name iterate to advertise preopened
// directories to the guest at startup.
func (t *PreopenTable) Prestats() []struct {
	FD   uint32
	Path string
} {
	out := make([]struct {
		FD   uint32
		Path string
	}, 0, len(t.dirs))
	for logical, e := range t.dirs {
		out = append(out, struct {
			FD   uint32
			Path string
		}{FD: e.fd, Path: logical})
	}
	return out
}
