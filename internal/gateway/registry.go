package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"alert-router/internal/models"
)

// ErrUnknownMedium is returned when no transport serves a medium.
var ErrUnknownMedium = errors.New("no transport for medium")

// Registry maps media to their transports.
type Registry struct {
	transports map[models.Medium]Transport
}

func NewRegistry(transports ...Transport) *Registry {
	r := &Registry{transports: make(map[models.Medium]Transport, len(transports))}
	for _, t := range transports {
		r.transports[t.Medium()] = t
	}
	return r
}

func (r *Registry) Get(medium models.Medium) (Transport, error) {
	t, ok := r.transports[medium]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMedium, medium)
	}
	return t, nil
}

// Group runs several workers and stops them together.
type Group struct {
	workers []*Worker
	wg      sync.WaitGroup
	mu      sync.Mutex
	errs    []error
}

func (g *Group) Add(w *Worker) {
	g.workers = append(g.workers, w)
}

// Start launches every worker in its own goroutine.
func (g *Group) Start(ctx context.Context) {
	for _, w := range g.workers {
		g.wg.Add(1)
		go func(w *Worker) {
			defer g.wg.Done()
			if err := w.Run(ctx); err != nil {
				g.mu.Lock()
				g.errs = append(g.errs, fmt.Errorf("%s gateway: %w", w.transport.Medium(), err))
				g.mu.Unlock()
			}
		}(w)
	}
}

// Stop signals every worker and waits for all of them to return.
func (g *Group) Stop() error {
	for _, w := range g.workers {
		w.Stop()
	}
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
