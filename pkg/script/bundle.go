package script

import (
	"fmt"
	"io"
	"io/fs"
	"sort"
	"sync"
)

// Bundle is a named collection of text resources, such as an embedded
// directory of .sql files.
type Bundle interface {
	// Name identifies the bundle in the resource index
	Name() string
	// ResourceNames lists every resource in the bundle
	ResourceNames() ([]string, error)
	// Open streams the resource with the exact given name
	Open(name string) (io.ReadCloser, error)
}

// BundleSource enumerates the bundles currently available for resolution.
// The order must be stable between calls.
type BundleSource interface {
	Bundles() []Bundle
}

// Registry is a BundleSource that keeps bundles in registration order.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	bundles []Bundle
	names   map[string]struct{}
}

// NewRegistry creates a registry holding the given bundles
func NewRegistry(bundles ...Bundle) (*Registry, error) {
	r := &Registry{names: make(map[string]struct{})}
	for _, b := range bundles {
		if err := r.Register(b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends a bundle. Bundle names must be unique.
func (r *Registry) Register(b Bundle) error {
	if b == nil {
		return fmt.Errorf("script: cannot register nil bundle")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.names == nil {
		r.names = make(map[string]struct{})
	}
	if _, exists := r.names[b.Name()]; exists {
		return fmt.Errorf("script: bundle %q already registered", b.Name())
	}
	r.names[b.Name()] = struct{}{}
	r.bundles = append(r.bundles, b)
	return nil
}

// Bundles returns a snapshot of the registered bundles
func (r *Registry) Bundles() []Bundle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Bundle, len(r.bundles))
	copy(out, r.bundles)
	return out
}

// FSBundle exposes the files of an fs.FS as a bundle. Resource names are
// slash-separated paths relative to the FS root.
type FSBundle struct {
	name string
	fsys fs.FS
}

// NewFSBundle wraps fsys, typically an embed.FS or os.DirFS
func NewFSBundle(name string, fsys fs.FS) *FSBundle {
	return &FSBundle{name: name, fsys: fsys}
}

func (b *FSBundle) Name() string {
	return b.name
}

func (b *FSBundle) ResourceNames() ([]string, error) {
	var names []string
	err := fs.WalkDir(b.fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			names = append(names, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk bundle %s: %w", b.name, err)
	}
	sort.Strings(names)
	return names, nil
}

func (b *FSBundle) Open(name string) (io.ReadCloser, error) {
	return b.fsys.Open(name)
}

var (
	_ BundleSource = (*Registry)(nil)
	_ Bundle       = (*FSBundle)(nil)
)
