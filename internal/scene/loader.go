package scene

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"waypoint-walk/server/logging"
	"waypoint-walk/server/logging/content"
)

// ErrUnknownScene is returned by Catalog.Get for ids that were never loaded.
var ErrUnknownScene = errors.New("unknown scene")

// Decode parses a scene file. The format follows the extension: .json is
// JSON, .yaml/.yml is YAML. Unknown fields are rejected in both.
func Decode(data []byte, ext string) (File, error) {
	var f File
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return File{}, fmt.Errorf("decode json: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return File{}, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return File{}, fmt.Errorf("unsupported scene file extension %q", ext)
	}
	return f, nil
}

// LoadFile reads and builds one scene.
func LoadFile(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}
	f, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Build(f, path)
}

// Catalog holds every loaded scene by id.
type Catalog struct {
	scenes map[string]*Scene
	order  []string
}

// NewCatalog indexes scenes. Duplicate ids are an error.
func NewCatalog(scenes ...*Scene) (*Catalog, error) {
	c := &Catalog{scenes: make(map[string]*Scene, len(scenes))}
	for _, s := range scenes {
		if s == nil {
			continue
		}
		if existing, ok := c.scenes[s.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate scene id %q in %s and %s", ErrInvalidScene, s.ID, existing.Source, s.Source)
		}
		c.scenes[s.ID] = s
		c.order = append(c.order, s.ID)
	}
	return c, nil
}

// Get looks up a scene.
func (c *Catalog) Get(id string) (*Scene, error) {
	if c != nil {
		if s, ok := c.scenes[id]; ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScene, id)
}

// IDs lists scene ids in load order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len reports the number of scenes.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// LoadDir loads every scene file in dir, in file-name order, and publishes a
// content event per scene and per authoring issue, including the cross-scene
// ones found by ValidateCatalog.
func LoadDir(ctx context.Context, dir string, pub logging.Publisher) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scene dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	scenes := make([]*Scene, 0, len(names))
	for _, name := range names {
		s, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, s)
	}
	catalog, err := NewCatalog(scenes...)
	if err != nil {
		return nil, err
	}

	ValidateCatalog(catalog)
	for _, s := range scenes {
		content.SceneLoaded(ctx, pub, s.ID, content.SceneLoadedPayload{
			Source:       s.Source,
			Obstacles:    len(s.Geometry.Obstacles),
			Waypoints:    len(s.Geometry.Waypoints),
			Interactions: len(s.Interactions),
		})
		for _, issue := range s.Issues {
			content.SceneIssue(ctx, pub, s.ID, content.SceneIssuePayload{Code: issue.Code, Subject: issue.Subject, Detail: issue.Detail})
		}
	}
	return catalog, nil
}
