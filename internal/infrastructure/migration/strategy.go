package migration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/natebag/Testsite-sub005/internal/shared/goroutine"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// Strategy decides how the items of one batch are scheduled. Item execution
// itself always goes through Engine.runItem.
type Strategy interface {
	Name() string
	Run(ctx context.Context, e *Engine, batch *Batch, plan *Plan) error
}

// NewStrategy resolves a strategy by name, defaulting to sequential.
func NewStrategy(name string, log logger.Interface) Strategy {
	switch name {
	case "parallel":
		return &ParallelStrategy{log: log}
	case "rolling":
		return &RollingStrategy{log: log}
	case "blue-green", "shadow", "canary":
		return &HookStrategy{name: name, log: log}
	default:
		return &SequentialStrategy{}
	}
}

// SequentialStrategy runs items one at a time in plan order.
type SequentialStrategy struct{}

func (s *SequentialStrategy) Name() string { return "sequential" }

func (s *SequentialStrategy) Run(ctx context.Context, e *Engine, batch *Batch, _ *Plan) error {
	return runSequential(ctx, e, batch.Items)
}

func runSequential(ctx context.Context, e *Engine, items []*Item) error {
	for _, item := range items {
		if item.Status != ItemPending {
			continue
		}
		if e.stopped.Load() {
			markSkipped(items)
			return errStopped
		}
		if err := e.runItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func markSkipped(items []*Item) {
	for _, item := range items {
		if item.Status == ItemPending {
			item.Status = ItemSkipped
		}
	}
}

// ParallelStrategy runs each dependency level concurrently up to the worker
// cap. Levels remain strict ordering barriers.
type ParallelStrategy struct {
	log logger.Interface
}

func (s *ParallelStrategy) Name() string { return "parallel" }

func (s *ParallelStrategy) Run(ctx context.Context, e *Engine, batch *Batch, plan *Plan) error {
	itemFor := make(map[string]*Item, len(batch.Items))
	for _, item := range batch.Items {
		itemFor[item.Migration.ID()] = item
	}

	workers := e.cfg.WorkerCap
	if workers <= 0 {
		workers = 4
	}

	for _, level := range plan.Levels {
		if e.stopped.Load() {
			markSkipped(batch.Items)
			return errStopped
		}

		var (
			wg       sync.WaitGroup
			sem      = make(chan struct{}, workers)
			mu       sync.Mutex
			firstErr error
		)
		for _, m := range level {
			item := itemFor[m.ID()]
			if item == nil || item.Status != ItemPending {
				continue
			}
			wg.Add(1)
			sem <- struct{}{}
			goroutine.SafeGo(s.log, "migration-worker", func() {
				defer wg.Done()
				defer func() { <-sem }()
				if err := e.runItem(ctx, item); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			})
		}
		wg.Wait()
		if firstErr != nil {
			return firstErr
		}
	}
	return nil
}

// RollingStrategy applies backward-compatible items first, then runs the
// breaking phase inside a maintenance window.
type RollingStrategy struct {
	log logger.Interface

	// WaitForWindow blocks until the maintenance window opens. Nil means
	// the window is always open.
	WaitForWindow func(ctx context.Context) error
}

func (s *RollingStrategy) Name() string { return "rolling" }

func (s *RollingStrategy) Run(ctx context.Context, e *Engine, batch *Batch, _ *Plan) error {
	var compatible, breaking []*Item
	for _, item := range batch.Items {
		if breakingPattern.MatchString(item.Migration.Content) {
			breaking = append(breaking, item)
		} else {
			compatible = append(compatible, item)
		}
	}

	s.log.Infow("rolling migration phases",
		"compatible", len(compatible),
		"breaking", len(breaking))

	if err := runSequential(ctx, e, compatible); err != nil {
		return err
	}
	if len(breaking) == 0 {
		return nil
	}

	if s.WaitForWindow != nil {
		s.log.Infow("waiting for maintenance window")
		if err := s.WaitForWindow(ctx); err != nil {
			return fmt.Errorf("maintenance window: %w", err)
		}
	}
	start := time.Now()
	err := runSequential(ctx, e, breaking)
	s.log.Infow("breaking phase finished", "duration", time.Since(start), "error", err)
	return err
}

// HookStrategy covers blue-green, shadow and canary rollouts. The engine
// side is sequential; the environment switch happens in the hooks.
type HookStrategy struct {
	name string
	log  logger.Interface

	Pre  func(ctx context.Context, batch *Batch) error
	Post func(ctx context.Context, batch *Batch) error
}

func (s *HookStrategy) Name() string { return s.name }

func (s *HookStrategy) Run(ctx context.Context, e *Engine, batch *Batch, plan *Plan) error {
	if s.Pre != nil {
		if err := s.Pre(ctx, batch); err != nil {
			return fmt.Errorf("%s pre hook: %w", s.name, err)
		}
	}
	if err := runSequential(ctx, e, batch.Items); err != nil {
		return err
	}
	if s.Post != nil {
		if err := s.Post(ctx, batch); err != nil {
			return fmt.Errorf("%s post hook: %w", s.name, err)
		}
	}
	return nil
}
