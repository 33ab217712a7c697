package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arnforge/modkit/internal/platform/errs"
	"github.com/arnforge/modkit/internal/platform/logging"
)

// shutdownTimeout bounds how long a single module's Stop may run before the
// kernel gives up waiting on it (§4.3).
const shutdownTimeout = 30 * time.Second

// entry is a single tracked (descriptor, instance) pair belonging to a kind.
type entry struct {
	name      string
	hash      ConfigHash
	dependsOn []string
	module    Module
}

// Kernel orchestrates dependency-ordered lifecycle across the four kinds:
// Provider, Utility, Service, App (§4.3). Within a kind, modules with no
// DependsOn edge between them start concurrently; a DependsOn edge to
// another module of the SAME kind forces a happens-before order. Kinds
// themselves form a hard barrier: every Provider finishes starting before
// any Utility starts, and so on.
type Kernel struct {
	registry *Registry
	cap      Capability
	logger   *zap.Logger

	entries map[Kind][]*entry
}

// New creates a Kernel with a fresh capability token and an empty registry.
func New(logger *zap.Logger) (*Kernel, error) {
	cap, err := newCapability()
	if err != nil {
		return nil, err
	}

	return &Kernel{
		registry: NewRegistry(logger),
		cap:      cap,
		logger:   logger,
		entries:  make(map[Kind][]*entry),
	}, nil
}

// Registry exposes the kernel's backing registry for typed lookups.
func (k *Kernel) Registry() *Registry { return k.registry }

// Register adds module under (kind, name, hash) and records its same-kind
// dependency edges. It does not start the module; call Start for that.
func (k *Kernel) Register(kind Kind, name string, hash ConfigHash, dependsOn []string, module Module) {
	k.registry.Register(kind, name, module, hash)
	k.entries[kind] = append(k.entries[kind], &entry{
		name:      name,
		hash:      hash,
		dependsOn: dependsOn,
		module:    module,
	})
}

// Start brings up every registered module in kind order (Provider, Utility,
// Service, App), running same-kind modules without a dependency edge
// between them concurrently via errgroup (§4.3, §5).
func (k *Kernel) Start(ctx context.Context) error {
	for _, kind := range kinds {
		if err := k.startKind(ctx, kind); err != nil {
			return fmt.Errorf("failed to start %s modules: %w", kind, err)
		}
	}

	return nil
}

func (k *Kernel) startKind(ctx context.Context, kind Kind) error {
	ordered, err := topoSort(k.entries[kind])
	if err != nil {
		return err
	}

	for _, wave := range ordered {
		eg, _ := errgroup.WithContext(ctx)

		for _, e := range wave {
			e := e

			eg.Go(func() error {
				if err := e.module.Start(k.cap); err != nil {
					return fmt.Errorf("module %s %q: %w", kind, e.name, err)
				}

				k.logger.Info("module started",
					logging.Component("kernel"),
					zap.String("kind", kind.String()),
					zap.String("name", e.name),
				)

				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			return err
		}
	}

	return nil
}

// Stop tears down every registered module in reverse kind order, each
// module bounded by shutdownTimeout. A module that times out is logged and
// skipped rather than blocking the remaining shutdown sequence; every
// module's stop error (not just the first) is collected and returned
// together so an operator sees the full shutdown picture in one place.
func (k *Kernel) Stop(ctx context.Context) error {
	var result *multierror.Error

	for i := len(kinds) - 1; i >= 0; i-- {
		kind := kinds[i]

		for _, e := range k.entries[kind] {
			stopCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			err := k.stopOne(stopCtx, e)
			cancel()

			if err != nil {
				result = multierror.Append(result, fmt.Errorf("module %s %q: %w", kind, e.name, err))
			}
		}
	}

	return result.ErrorOrNil()
}

func (k *Kernel) stopOne(ctx context.Context, e *entry) error {
	done := make(chan error, 1)

	go func() {
		done <- e.module.Stop(k.cap)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		k.logger.Warn("module stop timed out",
			logging.Component("kernel"),
			zap.String("name", e.name),
		)

		return fmt.Errorf("%w: stop timed out", errs.ErrTimeout)
	}
}

// topoSort groups entries of a single kind into sequential waves honoring
// DependsOn edges (same-kind only); entries within a wave have no edge
// between them and start concurrently. Returns ErrCyclicDependency if the
// dependency graph among entries is not a DAG.
func topoSort(entries []*entry) ([][]*entry, error) {
	byName := make(map[string]*entry, len(entries))
	for _, e := range entries {
		byName[e.name] = e
	}

	remaining := make(map[string]*entry, len(entries))
	for _, e := range entries {
		remaining[e.name] = e
	}

	var waves [][]*entry

	for len(remaining) > 0 {
		var wave []*entry

		for _, e := range remaining {
			ready := true

			for _, dep := range e.dependsOn {
				if _, ok := byName[dep]; !ok {
					continue // dependency outside this kind's entry set, ignore
				}

				if _, stillWaiting := remaining[dep]; stillWaiting {
					ready = false

					break
				}
			}

			if ready {
				wave = append(wave, e)
			}
		}

		if len(wave) == 0 {
			return nil, ErrCyclicDependency
		}

		for _, e := range wave {
			delete(remaining, e.name)
		}

		waves = append(waves, wave)
	}

	return waves, nil
}
