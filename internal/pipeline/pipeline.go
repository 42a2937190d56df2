// Package pipeline is the execution queue: an unbounded FIFO of queue
// items drained by a single worker, so questions hit the backend one at
// a time in submission order.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/alitto/pond/v2"

	"github.com/curiolabs/curio/internal/config"
)

type TaskType string

const (
	TaskTypeExploratory TaskType = "exploratory"
	TaskTypeStructured  TaskType = "structured"
)

// Item is one question ready for execution. Items live only in memory;
// whatever is queued at a crash is lost and re-fired next cadence.
type Item struct {
	Question  string
	TaskName  string
	TaskType  TaskType
	AlertMode config.AlertMode
	Threshold config.Threshold
}

type Config struct {
	Logger  *slog.Logger
	Process func(ctx context.Context, item Item)
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Process == nil {
		return errors.New("process func is required")
	}
	return nil
}

// Pipeline owns a single-worker pool. The mutex serializes Submit with
// the drain flag so enqueue order is processing order and nothing slips
// in after Drain begins.
type Pipeline struct {
	cfg  *Config
	log  *slog.Logger
	pool pond.Pool

	mu     sync.Mutex
	closed bool
}

func New(cfg *Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:  cfg,
		log:  cfg.Logger,
		pool: pond.NewPool(1),
	}, nil
}

// Enqueue submits an item for processing. It reports false once the
// pipeline is draining.
func (p *Pipeline) Enqueue(ctx context.Context, item Item) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.pool.Submit(func() {
		p.cfg.Process(ctx, item)
	})
	p.log.Debug("question queued", "task", item.TaskName, "type", item.TaskType)
	return true
}

// Pending reports how many items are waiting behind the in-flight one.
func (p *Pipeline) Pending() int {
	return int(p.pool.WaitingTasks())
}

// Drain stops intake and blocks until every queued item has been
// processed. Safe to call more than once.
func (p *Pipeline) Drain() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.pool.StopAndWait()
}
