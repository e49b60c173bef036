package wasip1

import "testing"

func TestPreopenTable_ResolveLongestPrefix(t *testing.T) {
	table := NewPreopenTable(3, map[string]string{
		"/":        "/host/root",
		"/var/log": "/host/varlog",
	})

	parentFD, rel, ok := table.Resolve("/var/log/app.log")
	if !ok {
		t.Fatal("expected /var/log/app.log to resolve")
	}
	if rel != "app.log" {
		t.Fatalf("expected relative path app.log, got %q", rel)
	}
	physical, ok := table.Physical(parentFD, rel)
	if !ok || physical != "/host/varlog/app.log" {
		t.Fatalf("expected /host/varlog/app.log, got %q (ok=%v)", physical, ok)
	}

	rootFD, rel, ok := table.Resolve("/etc/hosts")
	if !ok {
		t.Fatal("expected /etc/hosts to fall back to the root preopen")
	}
	if rel != "etc/hosts" {
		t.Fatalf("expected relative path etc/hosts, got %q", rel)
	}
	physical, ok = table.Physical(rootFD, rel)
	if !ok || physical != "/host/root/etc/hosts" {
		t.Fatalf("expected /host/root/etc/hosts, got %q (ok=%v)", physical, ok)
	}
}

func TestPreopenTable_ResolveUncovered(t *testing.T) {
	table := NewPreopenTable(3, map[string]string{"/var/log": "/host/varlog"})
	if _, _, ok := table.Resolve("/etc/hosts"); ok {
		t.Fatal("expected no preopen to cover /etc/hosts")
	}
}

func TestPreopenTable_Prestats(t *testing.T) {
	table := NewPreopenTable(3, map[string]string{"/data": "/host/data"})
	stats := table.Prestats()
	if len(stats) != 1 || stats[0].Path != "/data" || stats[0].FD != 3 {
		t.Fatalf("unexpected prestats: %+v", stats)
	}
}
