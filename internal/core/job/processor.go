package job

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/solarworks/sunray/internal/core/event"
	"github.com/solarworks/sunray/internal/pipeline"
)

// Runner executes the analysis for one scene and writes both artifacts into
// outDir. *pipeline.Pipeline is the production implementation.
type Runner interface {
	Run(ctx context.Context, scenePath, outDir string) (*pipeline.Result, error)
}

// Work is one queued processing request.
type Work struct {
	JobID     string
	ScenePath string
	Dir       string
}

// Processor drains the work queue with a bounded pool of workers. Every
// outcome, including panics, ends in a terminal store transition; nothing
// escapes to crash the server.
type Processor struct {
	store   *Store
	runner  Runner
	bus     event.Bus
	queue   chan Work
	workers int
	wg      sync.WaitGroup
}

func NewProcessor(store *Store, runner Runner, bus event.Bus, workers, queueSize int) *Processor {
	if workers < 1 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers * 8
	}
	return &Processor{
		store:   store,
		runner:  runner,
		bus:     bus,
		queue:   make(chan Work, queueSize),
		workers: workers,
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case w := <-p.queue:
					p.process(ctx, w)
				}
			}
		}()
	}
	log.Info().Int("workers", p.workers).Msg("job processor started")
}

// Wait blocks until all workers have exited.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Enqueue hands a job to the pool without blocking the caller.
func (p *Processor) Enqueue(w Work) error {
	select {
	case p.queue <- w:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Processor) process(ctx context.Context, w Work) {
	started := time.Now()
	if err := p.store.Transition(w.JobID, StatusProcessing, Fields{StartedAt: &started}); err != nil {
		// The job was deleted while queued. Nothing to record.
		log.Debug().Err(err).Str("job_id", w.JobID).Msg("skipping vanished job")
		return
	}
	p.publish(ctx, event.EventJobStarted, event.JobEvent{JobID: w.JobID, Status: string(StatusProcessing)})
	log.Info().Str("job_id", w.JobID).Msg("starting analysis")

	result, err := p.run(ctx, w)

	if err != nil {
		detail := fmt.Sprintf("%+v", err)
		var valErr *pipeline.ValidationError
		if errors.As(err, &valErr) {
			detail = "validation failed for array " + valErr.Array
		}
		completed := time.Now()
		if terr := p.store.Transition(w.JobID, StatusError, Fields{
			CompletedAt: &completed,
			Error:       err.Error(),
			ErrorDetail: detail,
		}); terr != nil {
			log.Debug().Err(terr).Str("job_id", w.JobID).Msg("job vanished during processing")
			return
		}
		p.publish(ctx, event.EventJobFailed, event.JobEvent{
			JobID:    w.JobID,
			Status:   string(StatusError),
			Error:    err.Error(),
			Duration: time.Since(started),
		})
		log.Warn().Err(err).Str("job_id", w.JobID).Msg("analysis failed")
		return
	}

	completed := time.Now()
	if terr := p.store.Transition(w.JobID, StatusComplete, Fields{
		CompletedAt: &completed,
		ResultPath:  result.ScenePath,
	}); terr != nil {
		log.Debug().Err(terr).Str("job_id", w.JobID).Msg("job vanished during processing")
		return
	}
	p.publish(ctx, event.EventJobCompleted, event.JobEvent{
		JobID:    w.JobID,
		Status:   string(StatusComplete),
		Duration: time.Since(started),
	})
	log.Info().Str("job_id", w.JobID).Dur("duration", time.Since(started)).Msg("analysis complete")
}

// run invokes the runner with a recover guard so a panicking backend turns
// into a recorded job error.
func (p *Processor) run(ctx context.Context, w Work) (result *pipeline.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return p.runner.Run(ctx, w.ScenePath, w.Dir)
}

func (p *Processor) publish(ctx context.Context, t event.EventType, payload event.JobEvent) {
	if p.bus == nil {
		return
	}
	_ = p.bus.Publish(ctx, event.Event{Type: t, Payload: payload})
}
