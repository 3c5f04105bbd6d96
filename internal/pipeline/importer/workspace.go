package importer

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// liveMarkerPrefix names the files in the workspace root that record which
// checkout a deployed site is served from.
const liveMarkerPrefix = ".live_"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Workspace owns the checkout directories under a common base directory.
type Workspace struct {
	root string
	now  func() time.Time
}

func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Workspace{root: abs, now: time.Now}, nil
}

func (w *Workspace) Root() string {
	return w.root
}

// Prepare creates a fresh, uniquely named directory for one checkout of the
// project: <root>/<name>_<unix nanos>.
func (w *Workspace) Prepare(projectName string) (string, error) {
	base := DirPrefix(projectName) + fmt.Sprint(w.now().UTC().UnixNano())
	dir := filepath.Join(w.root, base)
	for i := 1; ; i++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create checkout directory: %w", err)
		}
		dir = filepath.Join(w.root, fmt.Sprintf("%s-%d", base, i))
	}
}

// Cleanup removes a checkout directory created by Prepare.
func (w *Workspace) Cleanup(path string) error {
	if path == "" {
		return nil
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || rel == "" || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to cleanup path outside workspace root: %s", path)
	}
	return os.RemoveAll(path)
}

// MarkLive records that site is now served from path, a location inside one
// of the workspace checkouts. It replaces any earlier mark for site.
func (w *Workspace) MarkLive(site, path string) error {
	checkout, err := w.checkoutOf(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(w.root, ".marker-*")
	if err != nil {
		return fmt.Errorf("create live marker: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(checkout); err != nil {
		tmp.Close()
		return fmt.Errorf("write live marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write live marker: %w", err)
	}

	marker := filepath.Join(w.root, liveMarkerPrefix+url.PathEscape(site))
	if err := os.Rename(tmp.Name(), marker); err != nil {
		return fmt.Errorf("replace live marker: %w", err)
	}
	return nil
}

// LiveCheckouts returns the checkout directories some deployed site is
// served from.
func (w *Workspace) LiveCheckouts() (map[string]struct{}, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return nil, fmt.Errorf("read workspace root: %w", err)
	}

	live := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), liveMarkerPrefix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(w.root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read live marker %s: %w", entry.Name(), err)
		}
		live[filepath.Clean(strings.TrimSpace(string(data)))] = struct{}{}
	}
	return live, nil
}

// checkoutOf maps a path inside the workspace to its top-level checkout.
func (w *Workspace) checkoutOf(path string) (string, error) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path is not inside a workspace checkout: %s", path)
	}
	first, _, _ := strings.Cut(rel, string(filepath.Separator))
	return filepath.Join(w.root, first), nil
}

// DirPrefix is the prefix shared by every checkout directory of a project.
func DirPrefix(projectName string) string {
	name := unsafeNameChars.ReplaceAllString(strings.TrimSpace(projectName), "_")
	if name == "" {
		name = "project"
	}
	return name + "_"
}
