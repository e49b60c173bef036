package wasip1

import (
	"github.com/wippyai/fiber-runtime/event"
	"github.com/wippyai/fiber-runtime/resource"
)

// fdTypeID tags every entry this package stores in the resource table; the
// table otherwise has no idea it is holding file descriptors rather than
// component-model resources.
const fdTypeID uint32 = 1

// Descriptor is what an FDTable entry actually holds: the evented Target a
// descriptor's reads and writes go through, plus the rights WASI granted it
// at path_open time (§4.I).
type Descriptor struct {
	Target   event.Target
	Readable bool
	Writable bool
	Path     string
}

// Drop implements resource.Dropper: closing a descriptor's slot always
// closes its evented Target too.
func (d *Descriptor) Drop() {
	if d.Target != nil {
		d.Target.EventedClose()
	}
}

// FDTable assigns small, stable WASI fd numbers to Descriptors, repurposing
// the component-model resource table (package resource) as its backing
// store: fd 0/1/2 are reserved for stdio by inserting them first, and every
// later Insert hands out the next integer exactly the way WASI programs
// expect (monotonically increasing, never reused while the descriptor is
// open).
type FDTable struct {
	table *resource.UnifiedTable
}

// NewFDTable returns a table with stdin, stdout and stderr pre-registered at
// fd 0, 1 and 2 respectively.
func NewFDTable(stdin, stdout, stderr *Descriptor) *FDTable {
	t := &FDTable{table: resource.NewTable()}
	t.table.Insert(fdTypeID, stdin)
	t.table.Insert(fdTypeID, stdout)
	t.table.Insert(fdTypeID, stderr)
	return t
}

// Insert hands out the next WASI fd for d.
func (t *FDTable) Insert(d *Descriptor) uint32 {
	handle := t.table.Insert(fdTypeID, d)
	return uint32(handle) - 1
}

// Get resolves a WASI fd back to its Descriptor.
func (t *FDTable) Get(fd uint32) (*Descriptor, bool) {
	v, ok := t.table.GetTyped(resource.Handle(fd+1), fdTypeID)
	if !ok {
		return nil, false
	}
	return v.(*Descriptor), true
}

// Resolve implements fdResolver for the subscription decoder: it resolves a
// WASI fd straight to the event.Target that decides its readiness.
func (t *FDTable) Resolve(fd uint32) (event.Target, bool) {
	d, ok := t.Get(fd)
	if !ok || d.Target == nil {
		return nil, false
	}
	return d.Target, true
}

// Remove closes out fd's slot, returning its Descriptor if it existed.
func (t *FDTable) Remove(fd uint32) (*Descriptor, bool) {
	v, ok := t.table.Remove(resource.Handle(fd + 1))
	if !ok {
		return nil, false
	}
	return v.(*Descriptor), true
}

// Close tears down every remaining descriptor's evented Target.
func (t *FDTable) Close() error {
	return t.table.Close()
}
