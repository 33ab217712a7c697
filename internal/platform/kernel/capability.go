package kernel

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
)

// Capability is the kernel's unforgeable lifecycle token (§4.4, §9). It is
// generated once at kernel construction and never leaves the kernel except
// as the single argument passed into Module.Start/Stop. A module compares it
// in constant time against the token it was handed at registration; any
// other value is refused.
type Capability [32]byte

// newCapability generates a fresh random capability token.
func newCapability() (Capability, error) {
	var c Capability

	if _, err := rand.Read(c[:]); err != nil {
		return Capability{}, fmt.Errorf("failed to generate kernel capability: %w", err)
	}

	return c, nil
}

// Equal reports whether two capabilities match, in constant time.
func (c Capability) Equal(other Capability) bool {
	return subtle.ConstantTimeCompare(c[:], other[:]) == 1
}

// Module is the lifecycle contract every registered instance must satisfy.
// Start and Stop accept the caller's capability token; an implementation
// MUST refuse to run unless it equals the kernel's own token. Modules may
// not invoke their own Start or Stop.
type Module interface {
	Start(cap Capability) error
	Stop(cap Capability) error
}

// Guard is an embeddable helper that implements the capability check for
// Module implementations that would rather not hand-roll the comparison.
// Embed it and call Guard.Check(cap) as the first statement of Start/Stop.
type Guard struct {
	kernelCap Capability
}

// NewGuard binds a Guard to the kernel capability it will accept.
func NewGuard(kernelCap Capability) Guard {
	return Guard{kernelCap: kernelCap}
}

// zeroCapability is the value an embedded Guard holds when its owner never
// called NewGuard. Modules that don't care about capability gating can
// embed Guard as a no-op Start/Stop helper without binding it; Check treats
// that as "unchecked" rather than rejecting every caller.
var zeroCapability Capability

// Check returns UnauthorizedLifecycle unless cap matches the bound kernel
// capability. A Guard that was never bound via NewGuard accepts any cap.
func (g Guard) Check(cap Capability) error {
	if g.kernelCap == zeroCapability {
		return nil
	}

	if !g.kernelCap.Equal(cap) {
		return ErrUnauthorizedLifecycle
	}

	return nil
}
