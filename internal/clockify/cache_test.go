package clockify

import (
	"testing"
	"time"
)

func TestProjectCache_WhenExpired_ShouldReturnNil(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	c := NewProjectCache(time.Hour)
	c.now = func() time.Time { return now }

	c.Set("ws-1", []Project{{ID: "m-1"}})
	if got := c.Get("ws-1"); len(got) != 1 {
		t.Fatalf("expected cached project, got %+v", got)
	}

	now = now.Add(61 * time.Minute)
	if got := c.Get("ws-1"); got != nil {
		t.Errorf("expected expiry, got %+v", got)
	}
}

func TestProjectCache_ShouldKeepWorkspacesApart(t *testing.T) {
	c := NewProjectCache(time.Hour)
	c.Set("ws-1", []Project{{ID: "m-1"}})

	if got := c.Get("ws-2"); got != nil {
		t.Errorf("expected nothing for other workspace, got %+v", got)
	}
}

func TestProjectCache_WhenCallerMutatesResult_ShouldNotAffectCache(t *testing.T) {
	c := NewProjectCache(time.Hour)
	c.Set("ws-1", []Project{{ID: "m-1"}})

	got := c.Get("ws-1")
	got[0].ID = "changed"
	if c.Get("ws-1")[0].ID != "m-1" {
		t.Error("cache returned shared slice")
	}
}

func TestProjectCache_WhenWorkspaceHasNoProjects_ShouldServeEmptyHit(t *testing.T) {
	c := NewProjectCache(time.Hour)
	c.Set("ws-1", nil)

	got := c.Get("ws-1")
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil hit, got %#v", got)
	}
}
