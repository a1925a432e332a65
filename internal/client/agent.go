// Package client implements the agent side of remote solar analysis. The
// agent submits a scene and weather file to a sunray server, tracks the job
// through its lifecycle, and downloads the result when it completes.
//
// All network activity runs on a small pool of background workers. Host
// callbacks never fire from those workers: they are queued on an internal
// dispatch channel and delivered only when the host drains it with Tick,
// so embedding applications with a single-threaded execution model stay
// safe without locking on their side.
package client

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Progress values reported through the status callback at each stage.
const (
	ProgressQueued      = 0
	ProgressProcessing  = 50
	ProgressDownloading = 75
	ProgressComplete    = 100
)

// ResultCallback receives the final outcome of an analysis. On success the
// detail is the path of the downloaded result file, otherwise an error
// message.
type ResultCallback func(ok bool, detail string)

// StatusCallback receives stage transitions while a job is tracked.
type StatusCallback func(stage string, progress int, message string)

// Options configures an Agent.
type Options struct {
	ServerURL    string
	PollInterval time.Duration
	Timeout      time.Duration
	OutputDir    string
	Workers      int
	OnStatus     StatusCallback
}

// Agent talks to a sunray server on behalf of a host application.
type Agent struct {
	baseURL      string
	httpc        *http.Client
	pollInterval time.Duration
	outputDir    string
	onStatus     StatusCallback

	tasks    chan func()
	dispatch chan func()
	wg       sync.WaitGroup

	mu        sync.Mutex
	gen       uint64
	jobID     string
	onResult  ResultCallback
	pollTimer *time.Timer
	closed    bool
}

// New starts an Agent with the given options. Call Close when done.
func New(opts Options) *Agent {
	if opts.ServerURL == "" {
		opts.ServerURL = "http://localhost:8000"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.OutputDir == "" {
		opts.OutputDir = os.TempDir()
	}

	a := &Agent{
		baseURL:      strings.TrimRight(opts.ServerURL, "/"),
		httpc:        &http.Client{Timeout: opts.Timeout},
		pollInterval: opts.PollInterval,
		outputDir:    opts.OutputDir,
		onStatus:     opts.OnStatus,
		tasks:        make(chan func(), 16),
		dispatch:     make(chan func(), 64),
	}
	for i := 0; i < opts.Workers; i++ {
		a.wg.Add(1)
		go a.worker()
	}
	return a
}

func (a *Agent) worker() {
	defer a.wg.Done()
	for task := range a.tasks {
		task()
	}
}

// Tick delivers pending callbacks on the caller's goroutine. Hosts call it
// from their main loop; it never blocks.
func (a *Agent) Tick() {
	for {
		select {
		case f := <-a.dispatch:
			f()
		default:
			return
		}
	}
}

// Submit uploads a scene and weather file and begins tracking the job. Any
// previously tracked job is abandoned. The outcome is reported through cb
// during a later Tick.
func (a *Agent) Submit(scenePath, epwPath string, cb ResultCallback) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.send(func() { cb(false, "agent is closed") })
		return
	}
	a.cancelLocked()
	a.gen++
	gen := a.gen
	a.onResult = cb
	a.mu.Unlock()

	a.enqueue(gen, func() { a.doSubmit(gen, scenePath, epwPath) })
}

// Stop abandons the tracked job, if any. In-flight requests finish but
// their effects and callbacks are discarded.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelLocked()
}

// Close stops tracking and shuts down the worker pool. Callbacks already
// queued can still be drained with Tick.
func (a *Agent) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.cancelLocked()
	a.mu.Unlock()

	close(a.tasks)
	a.wg.Wait()
}

// JobID reports the identifier of the tracked job, empty when none.
func (a *Agent) JobID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.jobID
}

// ServerStatus queries the server health endpoint. It blocks, so it is meant
// for setup and diagnostics rather than the host's main loop.
func (a *Agent) ServerStatus() (map[string]any, error) {
	var out map[string]any
	if err := a.getJSON(a.baseURL+"/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// cancelLocked invalidates the current generation. Caller holds a.mu.
func (a *Agent) cancelLocked() {
	a.gen++
	a.jobID = ""
	a.onResult = nil
	if a.pollTimer != nil {
		a.pollTimer.Stop()
		a.pollTimer = nil
	}
}

// enqueue hands a task to the worker pool unless the generation has moved on.
// The send happens under the lock so Close cannot sneak in between the
// closed check and the send.
func (a *Agent) enqueue(gen uint64, task func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || gen != a.gen {
		return
	}
	select {
	case a.tasks <- task:
	default:
		// Queue full: run on a fresh goroutine rather than drop.
		go task()
	}
}

// send queues a callback for delivery on the next Tick.
func (a *Agent) send(f func()) {
	a.dispatch <- f
}

// sendIf queues a callback that is dropped at delivery time if the
// generation has moved on.
func (a *Agent) sendIf(gen uint64, f func()) {
	a.send(func() {
		a.mu.Lock()
		live := gen == a.gen
		a.mu.Unlock()
		if live {
			f()
		}
	})
}

func (a *Agent) emitStatus(gen uint64, stage string, progress int, message string) {
	if a.onStatus == nil {
		return
	}
	a.sendIf(gen, func() { a.onStatus(stage, progress, message) })
}

// fail reports a terminal failure and stops tracking the job.
func (a *Agent) fail(gen uint64, detail string) {
	a.send(func() {
		a.mu.Lock()
		if gen != a.gen {
			a.mu.Unlock()
			return
		}
		cb := a.onResult
		a.cancelLocked()
		a.mu.Unlock()
		if cb != nil {
			cb(false, detail)
		}
	})
}

// succeed reports the downloaded result path and stops tracking the job.
func (a *Agent) succeed(gen uint64, path string) {
	a.send(func() {
		a.mu.Lock()
		if gen != a.gen {
			a.mu.Unlock()
			return
		}
		cb := a.onResult
		a.cancelLocked()
		a.mu.Unlock()
		if cb != nil {
			cb(true, path)
		}
	})
}

func (a *Agent) doSubmit(gen uint64, scenePath, epwPath string) {
	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	err := a.postFiles(a.baseURL+"/submit", []filePart{
		{field: "usd_file", path: scenePath},
		{field: "epw_file", path: epwPath},
	}, &resp)
	if err != nil {
		log.Debug().Err(err).Msg("submit failed")
		a.fail(gen, fmt.Sprintf("submit failed: %v", err))
		return
	}

	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.jobID = resp.JobID
	a.mu.Unlock()

	log.Info().Str("job_id", resp.JobID).Msg("job submitted")
	a.emitStatus(gen, "queued", ProgressQueued, "")

	// First poll is scheduled through the dispatch channel so tracking
	// starts in step with the host's loop.
	a.sendIf(gen, func() {
		a.enqueue(gen, func() { a.poll(gen) })
	})
}

func (a *Agent) poll(gen uint64) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	jobID := a.jobID
	a.mu.Unlock()

	var st struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := a.getJSON(a.baseURL+"/status/"+jobID, &st); err != nil {
		// Transient transport trouble: keep polling.
		log.Debug().Err(err).Str("job_id", jobID).Msg("status poll failed")
		a.rearm(gen)
		return
	}

	switch st.Status {
	case "queued":
		a.emitStatus(gen, "queued", ProgressQueued, "")
		a.rearm(gen)
	case "processing":
		a.emitStatus(gen, "processing", ProgressProcessing, "")
		a.rearm(gen)
	case "complete":
		a.emitStatus(gen, "downloading", ProgressDownloading, "")
		a.enqueue(gen, func() { a.download(gen, jobID) })
	case "error":
		msg := st.Error
		if msg == "" {
			msg = "analysis failed"
		}
		a.emitStatus(gen, "error", ProgressQueued, msg)
		a.fail(gen, msg)
	default:
		log.Warn().Str("status", st.Status).Str("job_id", jobID).Msg("unknown job status")
		a.rearm(gen)
	}
}

// rearm schedules the next poll after the configured interval.
func (a *Agent) rearm(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || gen != a.gen {
		return
	}
	a.pollTimer = time.AfterFunc(a.pollInterval, func() {
		a.enqueue(gen, func() { a.poll(gen) })
	})
}

func (a *Agent) download(gen uint64, jobID string) {
	data, err := a.getBytes(a.baseURL + "/result/" + jobID)
	if err != nil {
		a.fail(gen, fmt.Sprintf("download failed: %v", err))
		return
	}

	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		a.fail(gen, fmt.Sprintf("create output dir: %v", err))
		return
	}
	path := filepath.Join(a.outputDir, fmt.Sprintf("solar_results_%s.json", jobID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		a.fail(gen, fmt.Sprintf("write result: %v", err))
		return
	}

	log.Info().Str("job_id", jobID).Str("path", path).Msg("result downloaded")
	a.emitStatus(gen, "complete", ProgressComplete, "")
	a.succeed(gen, path)
}
