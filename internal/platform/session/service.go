package session

import (
	"github.com/arnforge/modkit/internal/platform/kernel"
)

// Service wraps a Tracker as a kernel-managed Service-kind module: Start
// launches its hourly cleanup goroutine, Stop signals it to return (§4.9's
// "the kernel-managed service wraps this in its own Start/Stop").
type Service struct {
	kernel.Guard

	Tracker *Tracker
	stopCh  chan struct{}
}

// NewService builds a Service bound to kernelCap, wrapping tracker.
func NewService(kernelCap kernel.Capability, tracker *Tracker) *Service {
	return &Service{Guard: kernel.NewGuard(kernelCap), Tracker: tracker, stopCh: make(chan struct{})}
}

// Start implements kernel.Module.
func (s *Service) Start(cap kernel.Capability) error {
	if err := s.Guard.Check(cap); err != nil {
		return err
	}

	go s.Tracker.Run(s.stopCh)

	return nil
}

// Stop implements kernel.Module.
func (s *Service) Stop(cap kernel.Capability) error {
	if err := s.Guard.Check(cap); err != nil {
		return err
	}

	close(s.stopCh)

	return nil
}
