// Package health reports service status from a cheap vector backend probe.
package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/logger"
	"github.com/kailas-cloud/neuralquery/internal/metrics"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates the backend answered.
	Healthy Status = "healthy"
	// Unhealthy indicates the backend is unreachable, slow, or the probe failed.
	Unhealthy Status = "unhealthy"
)

// Report is the health payload.
type Report struct {
	Status       Status
	Service      string
	Index        string
	TotalVectors int
}

// Service coordinates health checks.
type Service struct {
	backend    BackendProber
	service    string
	collection string
	timeout    time.Duration
}

// New creates a Service reporting on collection under the given service name.
func New(backend BackendProber, service, collection string) *Service {
	return &Service{backend: backend, service: service, collection: collection, timeout: 3 * time.Second}
}

// WithTimeout bounds the backend probe.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check probes the backend. It never fails: a timeout or a panicking backend reports Unhealthy.
func (s *Service) Check(ctx context.Context) Report {
	rep := Report{Status: Unhealthy, Service: s.service, Index: s.collection}

	h, err := s.probe(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("health probe failed", zap.Error(err))
	} else if h.Reachable {
		rep.Status = Healthy
		rep.TotalVectors = h.ItemCount
	}

	if rep.Status == Healthy {
		metrics.BackendUp.Set(1)
		metrics.IndexedVectors.Set(float64(rep.TotalVectors))
	} else {
		metrics.BackendUp.Set(0)
	}
	return rep
}

func (s *Service) probe(ctx context.Context) (domain.BackendHealth, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type outcome struct {
		h   domain.BackendHealth
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("backend health panicked: %v", r)}
			}
		}()
		done <- outcome{h: s.backend.Health(ctx, s.collection)}
	}()

	select {
	case o := <-done:
		return o.h, o.err
	case <-ctx.Done():
		return domain.BackendHealth{}, fmt.Errorf("backend health: %w", ctx.Err())
	}
}
