package storage

import (
	"testing"
	"time"
)

func TestBuildResultPath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 22, 5, 0, 0, time.FixedZone("x", -5*3600))
	key, err := BuildResultPath("c0ffee-1", ts)
	if err != nil {
		t.Fatalf("BuildResultPath() error = %v", err)
	}
	want := "results/date=2026-02-20/c0ffee-1.json"
	if key != want {
		t.Fatalf("BuildResultPath() = %q, want %q", key, want)
	}
}

func TestBuildResultPathRejectsInvalidRequestID(t *testing.T) {
	for _, id := range []string{"", "../escape", "a/b", "-leading"} {
		if _, err := BuildResultPath(id, time.Now()); err == nil {
			t.Fatalf("BuildResultPath(%q) expected error", id)
		}
	}
}
