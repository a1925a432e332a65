package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer scripts the job lifecycle responses.
type fakeServer struct {
	mu       sync.Mutex
	statuses []string // consumed one per /status call, last one repeats
	submits  int
	jobID    string
	result   []byte
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "running"})
	})
	mux.HandleFunc("POST /submit", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.submits++
		f.mu.Unlock()
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.MultipartForm.File["usd_file"] == nil || r.MultipartForm.File["epw_file"] == nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"error": "missing upload field"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"job_id": f.jobID, "status": "queued"})
	})
	mux.HandleFunc("GET /status/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.statuses[0]
		if len(f.statuses) > 1 {
			f.statuses = f.statuses[1:]
		}
		f.mu.Unlock()
		resp := map[string]any{"job_id": f.jobID, "status": status}
		if status == "error" {
			resp["error"] = "invalid sun_vectors: contains NaN or Inf"
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /result/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(f.result)
	})
	return mux
}

type recorded struct {
	stages  []string
	results []string
	ok      *bool
}

func writeInputs(t *testing.T) (scenePath, epwPath string) {
	t.Helper()
	dir := t.TempDir()
	scenePath = filepath.Join(dir, "scene.json")
	epwPath = filepath.Join(dir, "site.epw")
	require.NoError(t, os.WriteFile(scenePath, []byte(`{"target":{}}`), 0o644))
	require.NoError(t, os.WriteFile(epwPath, []byte("LOCATION,Test,NA,NA,NA,0,51.0,0.0,0.0,10.0\n"), 0o644))
	return scenePath, epwPath
}

func newTestAgent(t *testing.T, serverURL string, rec *recorded) *Agent {
	t.Helper()
	agent := New(Options{
		ServerURL:    serverURL,
		PollInterval: 5 * time.Millisecond,
		OutputDir:    t.TempDir(),
		OnStatus: func(stage string, progress int, message string) {
			rec.stages = append(rec.stages, stage)
		},
	})
	t.Cleanup(agent.Close)
	return agent
}

func TestSubmitToCompletion(t *testing.T) {
	fake := &fakeServer{
		jobID:    "job-1",
		statuses: []string{"queued", "processing", "complete"},
		result:   []byte(`{"metadata":{}}`),
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	rec := &recorded{}
	agent := newTestAgent(t, srv.URL, rec)
	// Share the status recorder with the submit-side collector.
	out := runToCompletionWith(t, agent, rec)

	require.NotNil(t, out.ok)
	assert.True(t, *out.ok)

	resultPath := out.results[0]
	assert.FileExists(t, resultPath)
	data, err := os.ReadFile(resultPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadata":{}}`, string(data))

	assert.Equal(t, []string{"queued", "queued", "processing", "downloading", "complete"}, rec.stages)
	assert.Empty(t, agent.JobID(), "tracking ends after completion")
}

// runToCompletionWith drives a shared recorder through a full analysis.
func runToCompletionWith(t *testing.T, agent *Agent, rec *recorded) *recorded {
	t.Helper()
	scenePath, epwPath := writeInputs(t)
	done := false
	agent.Submit(scenePath, epwPath, func(ok bool, detail string) {
		rec.ok = &ok
		rec.results = append(rec.results, detail)
		done = true
	})

	deadline := time.After(10 * time.Second)
	for !done {
		select {
		case <-deadline:
			t.Fatalf("analysis never finished; stages seen: %v", rec.stages)
		case <-time.After(time.Millisecond):
			agent.Tick()
		}
	}
	return rec
}

func TestJobError(t *testing.T) {
	fake := &fakeServer{
		jobID:    "job-2",
		statuses: []string{"processing", "error"},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	rec := &recorded{}
	agent := newTestAgent(t, srv.URL, rec)
	out := runToCompletionWith(t, agent, rec)

	require.NotNil(t, out.ok)
	assert.False(t, *out.ok)
	assert.Contains(t, out.results[0], "sun_vectors")
	assert.Contains(t, rec.stages, "error")
	assert.NotContains(t, rec.stages, "complete")
}

func TestSubmitFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"error": "job queue full, try again later"})
	}))
	defer srv.Close()

	rec := &recorded{}
	agent := newTestAgent(t, srv.URL, rec)
	out := runToCompletionWith(t, agent, rec)

	require.NotNil(t, out.ok)
	assert.False(t, *out.ok)
	assert.Contains(t, out.results[0], "queue full")
}

func TestSubmitMissingInputFile(t *testing.T) {
	fake := &fakeServer{jobID: "job-3", statuses: []string{"queued"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	rec := &recorded{}
	agent := newTestAgent(t, srv.URL, rec)

	done := false
	var ok bool
	agent.Submit(filepath.Join(t.TempDir(), "missing.json"), filepath.Join(t.TempDir(), "missing.epw"),
		func(gotOK bool, detail string) {
			ok = gotOK
			done = true
		})

	deadline := time.After(5 * time.Second)
	for !done {
		select {
		case <-deadline:
			t.Fatal("callback never fired")
		case <-time.After(time.Millisecond):
			agent.Tick()
		}
	}
	assert.False(t, ok)
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 0, fake.submits, "nothing should reach the server")
}

func TestStopDiscardsCallbacks(t *testing.T) {
	fake := &fakeServer{
		jobID:    "job-4",
		statuses: []string{"queued"},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	rec := &recorded{}
	agent := newTestAgent(t, srv.URL, rec)

	fired := false
	scenePath, epwPath := writeInputs(t)
	agent.Submit(scenePath, epwPath, func(bool, string) { fired = true })
	agent.Stop()

	// Give any in-flight work time to land, then drain.
	time.Sleep(100 * time.Millisecond)
	agent.Tick()

	assert.False(t, fired, "stopped job must not call back")
	assert.Empty(t, agent.JobID())

	// Stop is idempotent.
	agent.Stop()
	agent.Stop()
}

func TestSecondSubmitSupersedesFirst(t *testing.T) {
	fake := &fakeServer{
		jobID:    "job-5",
		statuses: []string{"queued", "complete"},
		result:   []byte(`{}`),
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	rec := &recorded{}
	agent := newTestAgent(t, srv.URL, rec)

	firstFired := false
	scenePath, epwPath := writeInputs(t)
	agent.Submit(scenePath, epwPath, func(bool, string) { firstFired = true })

	out := runToCompletionWith(t, agent, rec)
	require.NotNil(t, out.ok)
	assert.True(t, *out.ok)
	assert.False(t, firstFired, "superseded submit must stay silent")
}

func TestServerStatus(t *testing.T) {
	fake := &fakeServer{jobID: "x", statuses: []string{"queued"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	agent := New(Options{ServerURL: srv.URL})
	defer agent.Close()

	status, err := agent.ServerStatus()
	require.NoError(t, err)
	assert.Equal(t, "running", status["status"])
}

func TestServerStatusUnreachable(t *testing.T) {
	agent := New(Options{ServerURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	defer agent.Close()

	_, err := agent.ServerStatus()
	assert.Error(t, err)
}
