package identity

import (
	"context"

	"github.com/arnforge/modkit/internal/platform/kernel"
)

// Service wraps a Manager as a kernel-managed Service-kind module: Start
// seeds the predefined roles and the SYSTEM user exactly once, and gates
// retrieval of that user on the kernel's capability token (§4.12:
// "the SYSTEM user... can only be retrieved by callers holding the kernel
// capability key").
type Service struct {
	kernel.Guard

	Manager *Manager
}

// NewService builds a Service bound to kernelCap, wrapping manager.
func NewService(kernelCap kernel.Capability, manager *Manager) *Service {
	return &Service{Guard: kernel.NewGuard(kernelCap), Manager: manager}
}

// Start implements kernel.Module.
func (s *Service) Start(cap kernel.Capability) error {
	if err := s.Guard.Check(cap); err != nil {
		return err
	}

	return s.Manager.Bootstrap(context.Background())
}

// Stop implements kernel.Module. Identity has no background resources to
// release.
func (s *Service) Stop(cap kernel.Capability) error {
	return s.Guard.Check(cap)
}

// GetSystemUser retrieves the SYSTEM user; cap must equal the kernel's
// capability token (§4.12).
func (s *Service) GetSystemUser(ctx context.Context, cap kernel.Capability) (User, error) {
	if err := s.Guard.Check(cap); err != nil {
		return User{}, err
	}

	return s.Manager.GetSystemUser(ctx)
}
