package kernel

import (
	"fmt"
)

// AppBase is embedded by every App-kind module. It holds the app's merged
// configuration and a typed view into the kernel registry so App code can
// look up the Providers/Utilities/Services it declared without holding a
// reference to the whole Kernel (§4.5).
type AppBase struct {
	Guard

	Name     string
	Config   map[string]any
	registry *Registry
}

// NewAppBase constructs an AppBase bound to kernelCap and backed by registry.
func NewAppBase(name string, config map[string]any, kernelCap Capability, registry *Registry) AppBase {
	return AppBase{
		Guard:    NewGuard(kernelCap),
		Name:     name,
		Config:   config,
		registry: registry,
	}
}

// GetTyped looks up the single instance registered under (kind, name) and
// asserts it to T, returning a wrapped error if the assertion fails.
func GetTyped[T any](base AppBase, kind Kind, name string, hash ConfigHash) (T, error) {
	var zero T

	instance, err := base.registry.Get(kind, name, hash)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("registered %s %q is not a %T", kind, name, zero)
	}

	return typed, nil
}

// GetProvider looks up a Provider by name, with no config disambiguator.
func (b AppBase) GetProvider(name string) (any, error) {
	return b.registry.Get(Provider, name, "")
}

// GetUtility looks up a Utility by name, with no config disambiguator.
func (b AppBase) GetUtility(name string) (any, error) {
	return b.registry.Get(Utility, name, "")
}

// GetService looks up a Service by name, with no config disambiguator.
func (b AppBase) GetService(name string) (any, error) {
	return b.registry.Get(Service, name, "")
}
