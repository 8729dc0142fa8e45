package agenda

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const (
	// NoProjectColor is the gray used for tasks without a project.
	NoProjectColor = "14"
	paletteSize    = 11
)

type ProjectColor struct {
	ColorID      string    `json:"color_id"`
	LastModified time.Time `json:"last_modified"`
}

// ColorCache hands out the eleven calendar event colors to projects,
// recycling the least recently used one when all are taken.
type ColorCache struct {
	Path     string
	Projects map[string]*ProjectColor `json:"projects"`
	now      func() time.Time
	mu       sync.Mutex
	dirty    bool
}

// NewColorCache loads the cache at path if it exists. An empty path keeps it
// in memory.
func NewColorCache(path string) (*ColorCache, error) {
	c := &ColorCache{
		Path:     path,
		Projects: make(map[string]*ProjectColor),
		now:      time.Now,
	}
	if path == "" {
		return c, nil
	}
	if _, err := os.Stat(path); err == nil {
		if err := c.Load(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *ColorCache) Load() error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := json.NewDecoder(f).Decode(&c.Projects); err != nil {
		return err
	}
	if c.Projects == nil {
		c.Projects = make(map[string]*ProjectColor)
	}
	return nil
}

func (c *ColorCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty || c.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0700); err != nil {
		return err
	}
	f, err := os.Create(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(c.Projects); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// ColorID returns the event color for a project and marks it recently used.
func (c *ColorCache) ColorID(projectID string) string {
	if projectID == "" {
		return NoProjectColor
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.Projects[projectID]; ok {
		state.LastModified = c.now()
		c.dirty = true
		return state.ColorID
	}
	return c.assign(projectID)
}

func (c *ColorCache) assign(projectID string) string {
	used := make(map[string]bool)
	for _, s := range c.Projects {
		used[s.ColorID] = true
	}
	for i := 1; i <= paletteSize; i++ {
		id := strconv.Itoa(i)
		if !used[id] {
			c.Projects[projectID] = &ProjectColor{ColorID: id, LastModified: c.now()}
			c.dirty = true
			return id
		}
	}

	// Full: recycle the least recently used color.
	var oldest string
	var oldestTime time.Time
	for p, s := range c.Projects {
		if oldest == "" || s.LastModified.Before(oldestTime) {
			oldest, oldestTime = p, s.LastModified
		}
	}
	recycled := c.Projects[oldest].ColorID
	delete(c.Projects, oldest)
	c.Projects[projectID] = &ProjectColor{ColorID: recycled, LastModified: c.now()}
	c.dirty = true
	return recycled
}
