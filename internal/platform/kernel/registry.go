package kernel

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/arnforge/modkit/internal/platform/logging"
)

// ConfigHash is the stable identity disambiguator for two instances sharing
// a (kind, name) — computed over the descriptor's `custom` field (§3).
type ConfigHash string

// HashConfig computes a stable ConfigHash over an arbitrary custom config
// value. Map keys are sorted before hashing so that field order never
// affects identity.
func HashConfig(custom map[string]any) ConfigHash {
	if len(custom) == 0 {
		return ""
	}

	keys := make([]string, 0, len(custom))
	for k := range custom {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	h := xxhash.New()

	for _, k := range keys {
		_, _ = h.Write([]byte(k))
		_, _ = h.Write([]byte{0})

		// Marshaling errors here would mean the custom value itself is not
		// representable as config; a failure degrades to a hash that ignores
		// the bad field rather than panicking.
		if data, err := json.Marshal(custom[k]); err == nil {
			_, _ = h.Write(data)
		}

		_, _ = h.Write([]byte{0})
	}

	return ConfigHash(fmt.Sprintf("%016x", h.Sum64()))
}

type registryKey struct {
	kind Kind
	name string
	hash ConfigHash
}

type indexKey struct {
	kind Kind
	name string
}

// Registry is a typed multi-instance store keyed by (kind, name, configHash)
// (§4.1). It is safe for concurrent use; mutations are serialized per key.
type Registry struct {
	mu        sync.RWMutex
	instances map[registryKey]any
	index     map[indexKey][]ConfigHash
	logger    *zap.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		instances: make(map[registryKey]any),
		index:     make(map[indexKey][]ConfigHash),
		logger:    logger,
	}
}

// Register stores instance under (kind, name, hash). Overwriting an existing
// key succeeds but logs a warning (§4.1).
func (r *Registry) Register(kind Kind, name string, instance any, hash ConfigHash) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rk := registryKey{kind: kind, name: name, hash: hash}
	ik := indexKey{kind: kind, name: name}

	if _, exists := r.instances[rk]; exists {
		r.logger.Warn("overriding existing registry entry",
			logging.Component("kernel.registry"),
			zap.String("kind", kind.String()),
			zap.String("name", name),
			zap.String("config_hash", string(hash)),
		)
	} else {
		r.index[ik] = append(r.index[ik], hash)
	}

	r.instances[rk] = instance
}

// Get returns the single instance registered under (kind, name). If hash is
// empty, it succeeds only when exactly one instance is registered under that
// name; with two or more it returns ErrAmbiguousLookup (§4.1 invariant 1).
func (r *Registry) Get(kind Kind, name string, hash ConfigHash) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if hash != "" {
		instance, ok := r.instances[registryKey{kind: kind, name: name, hash: hash}]
		if !ok {
			return nil, &NotFoundError{Kind: kind, Name: name}
		}

		return instance, nil
	}

	hashes := r.index[indexKey{kind: kind, name: name}]

	switch len(hashes) {
	case 0:
		return nil, &NotFoundError{Kind: kind, Name: name}
	case 1:
		return r.instances[registryKey{kind: kind, name: name, hash: hashes[0]}], nil
	default:
		return nil, fmt.Errorf("%w: %d instances registered under %s %q", ErrAmbiguousLookup, len(hashes), kind, name)
	}
}

// GetAll returns every instance registered under (kind, name), in registration order.
func (r *Registry) GetAll(kind Kind, name string) []any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hashes := r.index[indexKey{kind: kind, name: name}]
	out := make([]any, 0, len(hashes))

	for _, h := range hashes {
		out = append(out, r.instances[registryKey{kind: kind, name: name, hash: h}])
	}

	return out
}

// Has reports whether Get(kind, name, hash) would succeed.
func (r *Registry) Has(kind Kind, name string, hash ConfigHash) bool {
	_, err := r.Get(kind, name, hash)

	return err == nil
}

// Delete removes the instance registered under (kind, name, hash), reporting
// whether it was present.
func (r *Registry) Delete(kind Kind, name string, hash ConfigHash) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rk := registryKey{kind: kind, name: name, hash: hash}

	if _, ok := r.instances[rk]; !ok {
		return false
	}

	delete(r.instances, rk)

	ik := indexKey{kind: kind, name: name}
	hashes := r.index[ik]

	for i, h := range hashes {
		if h == hash {
			r.index[ik] = append(hashes[:i], hashes[i+1:]...)

			break
		}
	}

	if len(r.index[ik]) == 0 {
		delete(r.index, ik)
	}

	return true
}
