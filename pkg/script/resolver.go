package script

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/eleven-am/dbhelper/internal/logger"
)

// Observer is notified about cache behaviour. Implementations must be safe
// for concurrent use.
type Observer interface {
	ScriptCacheHit(key string)
	ScriptCacheMiss(key string)
	BundleIndexed(bundle string, scripts int)
}

// ScriptInfo describes one indexed script resource
type ScriptInfo struct {
	Bundle   string
	Resource string
	Key      string
}

type indexEntry struct {
	name string
	key  string
}

// Resolver turns script references into statement text. It memoizes the
// script index of every bundle and the resolved text of every key for its
// whole lifetime. A Resolver is safe for concurrent use.
type Resolver struct {
	source   BundleSource
	observer Observer

	index sync.Map // bundle name -> []indexEntry
	texts sync.Map // key -> string
	group singleflight.Group
}

// Option configures a Resolver
type Option func(*Resolver)

// WithObserver reports cache hits, misses and index builds to o
func WithObserver(o Observer) Option {
	return func(r *Resolver) {
		r.observer = o
	}
}

// NewResolver creates a resolver over the bundles of source
func NewResolver(source BundleSource, opts ...Option) *Resolver {
	r := &Resolver{source: source}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the statement text for reference. References that do not
// end in .sql are returned unchanged.
func (r *Resolver) Resolve(reference string) (string, error) {
	key := NormalizeKey(reference)
	if !strings.HasSuffix(key, keySuffix) {
		return reference, nil
	}

	if text, ok := r.texts.Load(key); ok {
		r.hit(key)
		return text.(string), nil
	}
	r.miss(key)

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		// a concurrent flight may have stored it between the miss and here
		if text, ok := r.texts.Load(key); ok {
			return text, nil
		}
		return r.scan(reference, key)
	})
	if err != nil {
		return "", forReference(err, reference)
	}
	return v.(string), nil
}

// forReference rewrites a flight's error for one caller; callers sharing a
// flight may have spelled the reference differently.
func forReference(err error, reference string) error {
	var se *Error
	if !errors.As(err, &se) || se.Reference == reference {
		return err
	}
	copied := *se
	copied.Reference = reference
	return &copied
}

// Cached returns the cached text for reference without scanning bundles
func (r *Resolver) Cached(reference string) (string, bool) {
	text, ok := r.texts.Load(NormalizeKey(reference))
	if !ok {
		return "", false
	}
	return text.(string), true
}

// Len returns the number of resolved scripts held in the cache
func (r *Resolver) Len() int {
	n := 0
	r.texts.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Scripts lists every script resource across all bundles, in bundle order
func (r *Resolver) Scripts() ([]ScriptInfo, error) {
	if r.source == nil {
		return nil, nil
	}
	var out []ScriptInfo
	for _, b := range r.source.Bundles() {
		entries, err := r.bundleIndex(b)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			out = append(out, ScriptInfo{Bundle: b.Name(), Resource: e.name, Key: e.key})
		}
	}
	return out, nil
}

func (r *Resolver) scan(reference, key string) (string, error) {
	if r.source == nil {
		return "", &Error{Op: "resolve", Reference: reference, Key: key, Err: ErrScriptNotFound}
	}

	for _, b := range r.source.Bundles() {
		entries, err := r.bundleIndex(b)
		if err != nil {
			return "", err
		}

		var matches []string
		for _, e := range entries {
			if strings.HasSuffix(e.key, key) {
				matches = append(matches, e.name)
			}
		}

		switch len(matches) {
		case 0:
			continue
		case 1:
			text, err := readResource(b, matches[0])
			if err != nil {
				return "", &Error{
					Op:        "read",
					Reference: reference,
					Key:       key,
					Bundle:    b.Name(),
					Resource:  matches[0],
					Err:       fmt.Errorf("%w: %w", ErrResourceRead, err),
				}
			}
			r.texts.Store(key, text)
			logger.Script().WithFields(map[string]interface{}{
				"key":      key,
				"bundle":   b.Name(),
				"resource": matches[0],
			}).Debug("resolved script")
			return text, nil
		default:
			sort.Strings(matches)
			return "", &Error{
				Op:         "resolve",
				Reference:  reference,
				Key:        key,
				Bundle:     b.Name(),
				Candidates: matches,
				Err:        ErrAmbiguousScript,
			}
		}
	}

	return "", &Error{Op: "resolve", Reference: reference, Key: key, Err: ErrScriptNotFound}
}

func (r *Resolver) bundleIndex(b Bundle) ([]indexEntry, error) {
	if cached, ok := r.index.Load(b.Name()); ok {
		return cached.([]indexEntry), nil
	}

	names, err := b.ResourceNames()
	if err != nil {
		return nil, &Error{Op: "index", Bundle: b.Name(), Err: fmt.Errorf("%w: %w", ErrResourceRead, err)}
	}

	entries := make([]indexEntry, 0, len(names))
	for _, name := range names {
		if hasScriptSuffix(name) {
			entries = append(entries, indexEntry{name: name, key: NormalizeKey(name)})
		}
	}

	actual, loaded := r.index.LoadOrStore(b.Name(), entries)
	if !loaded {
		logger.Script().WithField("bundle", b.Name()).Debug("indexed %d scripts", len(entries))
		if r.observer != nil {
			r.observer.BundleIndexed(b.Name(), len(entries))
		}
	}
	return actual.([]indexEntry), nil
}

func readResource(b Bundle, name string) (string, error) {
	rc, err := b.Open(name)
	if err != nil {
		return "", err
	}
	if rc == nil {
		return "", fmt.Errorf("bundle %s returned no stream for %s", b.Name(), name)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *Resolver) hit(key string) {
	if r.observer != nil {
		r.observer.ScriptCacheHit(key)
	}
}

func (r *Resolver) miss(key string) {
	if r.observer != nil {
		r.observer.ScriptCacheMiss(key)
	}
}
