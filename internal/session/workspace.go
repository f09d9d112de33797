package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/HendryAvila/atlasmcp/internal/mirror"
)

// DraftPrefix starts the handle of a document that does not exist remotely
// yet.
const DraftPrefix = mirror.SentinelNew + "-"

// ErrNoMirror is returned when a mirror file does not exist.
var ErrNoMirror = errors.New("mirror file not found")

// Workspace stores mirror files under <root>/<kind>/<id>.md.
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace rooted at root. Nothing is created on
// disk until the first write.
func NewWorkspace(root string) *Workspace {
	return &Workspace{root: root}
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// Path returns where the mirror of kind/id lives.
func (w *Workspace) Path(kind mirror.Kind, id string) string {
	return filepath.Join(w.root, string(kind), fileName(id)+".md")
}

// Write stores text as the mirror of kind/id and returns its path.
func (w *Workspace) Write(kind mirror.Kind, id, text string) (string, error) {
	path := w.Path(kind, id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating mirror directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("writing mirror %s: %w", path, err)
	}
	return path, nil
}

// Draft stores a create-intent document under a fresh handle. The handle
// stands in for the id until the entity is created.
func (w *Workspace) Draft(kind mirror.Kind, text string) (handle, path string, err error) {
	handle = DraftPrefix + uuid.NewString()[:8]
	path, err = w.Write(kind, handle, text)
	if err != nil {
		return "", "", err
	}
	return handle, path, nil
}

// Read returns the mirror of kind/id.
func (w *Workspace) Read(kind mirror.Kind, id string) (string, error) {
	return ReadFile(w.Path(kind, id))
}

// Remove deletes the mirror of kind/id. A missing file is not an error.
func (w *Workspace) Remove(kind mirror.Kind, id string) error {
	err := os.Remove(w.Path(kind, id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing mirror: %w", err)
	}
	return nil
}

// ReadFile reads a mirror file by path.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNoMirror, path)
		}
		return "", fmt.Errorf("reading mirror %s: %w", path, err)
	}
	return string(data), nil
}

// IsDraft reports whether id is a draft handle.
func IsDraft(id string) bool {
	return strings.HasPrefix(strings.ToLower(id), DraftPrefix)
}

// fileName keeps ids like "ENG-7" and "123456" as they are and replaces
// anything that could escape the directory.
func fileName(id string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, strings.TrimSpace(id))
	name = strings.Trim(name, ".")
	if name == "" {
		return "_"
	}
	return name
}
