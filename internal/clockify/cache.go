package clockify

import (
	"sync"
	"time"
)

type cachedProjects struct {
	projects  []Project
	fetchedAt time.Time
}

// ProjectCache holds project lists per workspace for a fixed TTL.
type ProjectCache struct {
	mu         sync.RWMutex
	workspaces map[string]cachedProjects
	ttl        time.Duration
	now        func() time.Time
}

func NewProjectCache(ttl time.Duration) *ProjectCache {
	return &ProjectCache{
		workspaces: make(map[string]cachedProjects),
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns a copy of the workspace's projects, or nil when missing or expired.
// A cached workspace with no projects yields an empty, non-nil slice.
func (c *ProjectCache) Get(workspaceID string) []Project {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.workspaces[workspaceID]
	if !ok || c.now().Sub(entry.fetchedAt) > c.ttl {
		return nil
	}
	return append(make([]Project, 0, len(entry.projects)), entry.projects...)
}

func (c *ProjectCache) Set(workspaceID string, projects []Project) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.workspaces[workspaceID] = cachedProjects{
		projects:  append(make([]Project, 0, len(projects)), projects...),
		fetchedAt: c.now(),
	}
}
