package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/holysaw/holysaw"
	"github.com/holysaw/holysaw/server"
	"github.com/holysaw/holysaw/store"
	"github.com/holysaw/holysaw/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...server.Option) *httptest.Server {
	t.Helper()
	st := store.NewMemory()
	w, err := worker.New(worker.WithStore(st), worker.WithoutSamples())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)
	ts := httptest.NewServer(server.New(w, st, opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, req worker.Request) (*http.Response, worker.Response) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/synthesize", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out worker.Response
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func song() holysaw.Song {
	return holysaw.Song{
		Preamble: "y() = saw(220 * t) * 0.25",
		Timeline: holysaw.Timeline{{Cells: []holysaw.Cell{{MsDuration: 20, Content: ""}}}},
	}
}

func TestSynthesizeAndFetchArtifacts(t *testing.T) {
	ts := newTestServer(t)
	resp, out := post(t, ts, worker.Request{ID: "../other", Song: song(), SaveAsWav: true, SaveTrace: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, worker.ActionProcessed, out.Action)
	_, err := uuid.Parse(out.ID)
	require.NoError(t, err, "the server assigns the job ID")
	assert.Equal(t, "results/"+out.ID+"/wav", out.Result.WavRef)
	assert.Equal(t, 883, out.Result.Length)

	resp, wav := get(t, ts.URL+"/results/"+out.ID+"/wav")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	assert.Equal(t, "RIFF", string(wav[:4]))

	resp, trace := get(t, ts.URL+"/results/"+out.ID+"/trace")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(trace), "0: ch0[0] skipped;")

	resp, _ = get(t, ts.URL+"/results/nope/wav")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = get(t, ts.URL+"/results/"+out.ID+"/mp3")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSynthesizeErrors(t *testing.T) {
	ts := newTestServer(t, server.WithMaxStopMs(100))

	resp, err := http.Post(ts.URL+"/synthesize", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	stop := 1000.0
	resp, _ = post(t, ts, worker.Request{Song: song(), StopMs: &stop})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	bad := song()
	bad.Preamble = "y() ="
	resp, out := post(t, ts, worker.Request{Song: bad})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, worker.ActionError, out.Action)
}

func TestSynthesizeIsCappedAtMaxStopMs(t *testing.T) {
	ts := newTestServer(t, server.WithMaxStopMs(10))
	resp, out := post(t, ts, worker.Request{Song: song()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 442, out.Result.Length)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	resp, body := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))

	post(t, ts, worker.Request{Song: song()})
	resp, body = get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `holysaw_runs_total{action="songProcessed"} 1`)
	assert.Contains(t, string(body), "holysaw_samples_total 883")
	assert.Contains(t, string(body), "holysaw_run_duration_seconds_count 1")
}
