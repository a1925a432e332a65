package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarworks/sunray/internal/core/event"
	"github.com/solarworks/sunray/internal/core/job"
	"github.com/solarworks/sunray/internal/engine/raytrace"
	"github.com/solarworks/sunray/internal/geom"
	"github.com/solarworks/sunray/internal/pipeline"
	"github.com/solarworks/sunray/internal/scene"
	"github.com/solarworks/sunray/internal/sun"
)

// Full flow over a live HTTP server with the real pipeline and ray tracer:
// submit two files, poll until complete, download, and check that the
// result carries one scalar per submitted target face.
func TestSubmitPollDownloadRoundTrip(t *testing.T) {
	store := job.NewStore()
	bus := event.NewBus()
	pipe := pipeline.New(raytrace.New(), sun.Vectors, "")
	proc := job.NewProcessor(store, pipe, bus, 1, 4)

	ctx, cancel := context.WithCancel(context.Background())
	proc.Start(ctx)
	t.Cleanup(func() {
		cancel()
		proc.Wait()
	})

	e := echo.New()
	NewHandlers(store, proc, t.TempDir()).WithBus(bus).Register(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	// Four up-facing faces; two context triangles below the plane so no ray
	// toward the sun can hit them. June 21st, hours 10..12, one sample per
	// hour: exactly three sun vectors at latitude 51.
	doc := &scene.Scene{
		Metadata: map[string]any{
			scene.KeyParams:  "6,6,21,21,10,12,1,0.1",
			scene.KeyEPWFile: "/replaced/on/upload.epw",
		},
		Target: &scene.TargetMesh{
			FaceCenters: []geom.Vec3{{}, {X: 1}, {X: 2}, {X: 3}},
			FaceNormals: []geom.Vec3{{Z: 1}, {Z: 1}, {Z: 1}, {Z: 1}},
		},
		Context: &scene.ContextMesh{
			Points: []geom.Vec3{
				{X: -1, Y: -1, Z: -5}, {X: 1, Y: -1, Z: -5}, {X: 0, Y: 1, Z: -5},
				{X: 2, Y: -1, Z: -5}, {X: 4, Y: -1, Z: -5}, {X: 3, Y: 1, Z: -5},
			},
			FaceVertexCounts:  []int{3, 3},
			FaceVertexIndices: []int{0, 1, 2, 3, 4, 5},
		},
	}
	sceneData, err := json.Marshal(doc)
	require.NoError(t, err)

	buf, ctype := multipartUpload(t, map[string][]byte{
		"usd_file": sceneData,
		"epw_file": []byte("LOCATION,Test,NA,NA,NA,0,51.0,0.0,0.0,10.0\n"),
	})
	resp, err := http.Post(srv.URL+"/submit", ctype, buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var submitted struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
	require.NotEmpty(t, submitted.JobID)
	assert.Equal(t, "queued", submitted.Status)

	// Poll until terminal.
	var status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	deadline := time.After(30 * time.Second)
	for status.Status != "complete" {
		select {
		case <-deadline:
			t.Fatalf("job stuck in %q", status.Status)
		case <-time.After(10 * time.Millisecond):
		}
		sr, err := http.Get(srv.URL + "/status/" + submitted.JobID)
		require.NoError(t, err)
		require.NoError(t, json.NewDecoder(sr.Body).Decode(&status))
		sr.Body.Close()
		require.NotEqual(t, "error", status.Status, "analysis failed: %s", status.Error)
	}

	rr, err := http.Get(srv.URL + "/result/" + submitted.JobID)
	require.NoError(t, err)
	defer rr.Body.Close()
	require.Equal(t, http.StatusOK, rr.StatusCode)
	assert.Contains(t, rr.Header.Get(echo.HeaderContentDisposition), submitted.JobID)

	payload, err := io.ReadAll(rr.Body)
	require.NoError(t, err)

	var result scene.Scene
	require.NoError(t, json.Unmarshal(payload, &result))
	require.NotNil(t, result.Target)
	// One scalar per submitted face; every face sees all three samples.
	require.Len(t, result.Target.SunHours, 4)
	assert.Equal(t, []float64{3, 3, 3, 3}, result.Target.SunHours)
	assert.Len(t, result.Target.DisplayColor, 4)
	assert.Nil(t, result.Context)
	assert.Equal(t, "ecotect", result.Metadata[scene.KeyColormap])
}
