// Package worker runs synthesis jobs in the background. Jobs and their
// results are plain serializable messages: no evaluator, audio device or
// other live handle ever crosses the channel boundary.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/holysaw/holysaw"
	"github.com/holysaw/holysaw/expr"
	"github.com/holysaw/holysaw/internal/logging"
	"github.com/holysaw/holysaw/meter"
	"github.com/holysaw/holysaw/report"
	"github.com/holysaw/holysaw/store"
)

type (
	// Request asks for a song to be synthesized. The song is a snapshot: the
	// caller may keep editing its own copy while the job runs.
	Request struct {
		ID        string       `json:"id,omitempty"`
		Song      holysaw.Song `json:"song"`
		StopMs    *float64     `json:"stopMs,omitempty"`
		PlayAudio bool         `json:"playAudio,omitempty"`
		SaveAsWav bool         `json:"saveAsWav,omitempty"`
		SaveTrace bool         `json:"saveTrace,omitempty"`
		Float32   bool         `json:"float32,omitempty"` // 32-bit float wav instead of 16-bit PCM
		TraceMode string       `json:"traceMode,omitempty"` // full, errors or off
	}

	// Response is posted back for every request.
	Response struct {
		ID     string  `json:"id"`
		Action string  `json:"action"`
		Result *Result `json:"result,omitempty"`
		Error  string  `json:"error,omitempty"`
	}

	// Result is the outcome of a successful job. When the worker has a store,
	// the wav and the trace are saved there and referenced by key; otherwise
	// they are inlined.
	Result struct {
		Samples    holysaw.AudioBuffer `json:"samples,omitempty"`
		PlayAudio  bool                `json:"playAudio,omitempty"`
		Wav        []byte              `json:"wav,omitempty"`
		WavRef     string              `json:"wavRef,omitempty"`
		Trace      []byte              `json:"trace,omitempty"`
		TraceRef   string              `json:"traceRef,omitempty"`
		Length     int                 `json:"length"`
		Level      meter.Level         `json:"level"`
		Recovered  int                 `json:"recovered"`
		Malformed  []string            `json:"malformed,omitempty"`
		RenderTime time.Duration       `json:"renderTime"`
	}

	Worker struct {
		jobs        chan job
		responses   chan Response
		service     holysaw.EvaluatorService
		store       store.Store
		logger      *slog.Logger
		reporter    *report.Reporter
		traceFormat report.Format
		omitSamples bool
		maxStopMs   float64
		observer    func(Response)
	}

	Option func(*Worker)

	job struct {
		req   Request
		reply chan Response
	}
)

const (
	ActionProcessed = "songProcessed"
	ActionError     = "error"
)

// ErrQueueFull is returned by Post when the worker cannot accept more jobs.
var ErrQueueFull = errors.New("worker queue is full")

// WithStore saves artifacts to s instead of inlining them in the responses.
func WithStore(s store.Store) Option {
	return func(w *Worker) { w.store = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithEvaluatorService replaces the expression language used for the jobs.
func WithEvaluatorService(s holysaw.EvaluatorService) Option {
	return func(w *Worker) { w.service = s }
}

// WithTraceFormat selects how saved traces are rendered.
func WithTraceFormat(f report.Format) Option {
	return func(w *Worker) { w.traceFormat = f }
}

// WithoutSamples leaves the raw samples out of the results; useful when
// the results are sent over the network and the wav is enough.
func WithoutSamples() Option {
	return func(w *Worker) { w.omitSamples = true }
}

// WithMaxStopMs caps every job to the given length; 0 means no cap.
func WithMaxStopMs(ms float64) Option {
	return func(w *Worker) { w.maxStopMs = ms }
}

// WithObserver calls f with every response, after the job is done.
func WithObserver(f func(Response)) Option {
	return func(w *Worker) { w.observer = f }
}

// WithQueueSize sets how many jobs and undelivered responses may wait.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		w.jobs = make(chan job, n)
		w.responses = make(chan Response, n)
	}
}

func New(opts ...Option) (*Worker, error) {
	w := &Worker{
		jobs:      make(chan job, 64),
		responses: make(chan Response, 64),
		service:   expr.EvaluatorService{},
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	r, err := report.New()
	if err != nil {
		return nil, fmt.Errorf("cannot create trace reporter: %w", err)
	}
	w.reporter = r
	return w, nil
}

// Run processes jobs one at a time until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-w.jobs:
			resp := w.Process(ctx, j.req)
			if j.reply != nil {
				j.reply <- resp
			} else if !TrySend(w.responses, resp) {
				w.logger.Warn("response_dropped", "job_id", resp.ID)
			}
		}
	}
}

// Post queues a job without waiting; its response is delivered on
// Responses. The job ID is assigned here if the request has none.
func (w *Worker) Post(req Request) (string, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if !TrySend(w.jobs, job{req: req}) {
		return "", ErrQueueFull
	}
	return req.ID, nil
}

// Responses delivers the responses of posted jobs.
func (w *Worker) Responses() <-chan Response {
	return w.responses
}

// Submit queues a job and waits for its response.
func (w *Worker) Submit(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	reply := make(chan Response, 1)
	select {
	case w.jobs <- job{req: req, reply: reply}:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Process runs one job synchronously.
func (w *Worker) Process(ctx context.Context, req Request) Response {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	start := time.Now()
	logger := w.logger.With("job_id", req.ID)
	logger.Info("job_start", "channels", len(req.Song.Timeline))
	res, err := w.process(ctx, req)
	resp := Response{ID: req.ID, Action: ActionProcessed, Result: res}
	if err != nil {
		resp = Response{ID: req.ID, Action: ActionError, Error: err.Error()}
		logger.Error("job_failed", "error", err, "duration", time.Since(start))
	} else {
		logger.Info("job_done", "samples", res.Length, "recovered", res.Recovered, "duration", time.Since(start))
	}
	if w.observer != nil {
		w.observer(resp)
	}
	return resp
}

func (w *Worker) process(ctx context.Context, req Request) (*Result, error) {
	if err := req.Song.Validate(); err != nil {
		return nil, err
	}
	if w.store != nil && strings.Contains(req.ID, "/") {
		return nil, fmt.Errorf("job id %q cannot be used as a store key", req.ID)
	}
	opts := holysaw.SynthesizeOptions{StopMs: req.StopMs}
	if w.maxStopMs > 0 && (opts.StopMs == nil || *opts.StopMs > w.maxStopMs) {
		capped := w.maxStopMs
		opts.StopMs = &capped
	}
	if req.TraceMode != "" {
		m, err := holysaw.ParseTraceMode(req.TraceMode)
		if err != nil {
			return nil, err
		}
		opts.TraceMode = m
	} else if !req.SaveTrace {
		// nobody would see the trace
		opts.TraceMode = holysaw.TraceOff
	}
	start := time.Now()
	synth, err := holysaw.Synthesize(ctx, w.service, req.Song, opts)
	if err != nil {
		return nil, err
	}
	res := &Result{
		PlayAudio:  req.PlayAudio,
		Length:     len(synth.Samples),
		Level:      meter.Summary(synth.Samples),
		Recovered:  synth.Recovered,
		RenderTime: time.Since(start),
	}
	if !w.omitSamples {
		res.Samples = synth.Samples
	}
	for _, m := range synth.Malformed {
		res.Malformed = append(res.Malformed, m.Error())
	}
	if req.SaveAsWav {
		wav, err := synth.Samples.Wav(!req.Float32)
		if err != nil {
			return nil, err
		}
		if res.WavRef, err = w.save(ctx, req.ID, "wav", wav); err != nil {
			return nil, err
		}
		if res.WavRef == "" {
			res.Wav = wav
		}
	}
	if req.SaveTrace {
		trace, err := w.reporter.Render(w.traceFormat, report.NewMacros(req.Song, synth))
		if err != nil {
			return nil, err
		}
		if res.TraceRef, err = w.save(ctx, req.ID, "trace", trace); err != nil {
			return nil, err
		}
		if res.TraceRef == "" {
			res.Trace = trace
		}
	}
	return res, nil
}

// save returns the key the data was saved under, or "" without a store.
func (w *Worker) save(ctx context.Context, id, artifact string, data []byte) (string, error) {
	if w.store == nil {
		return "", nil
	}
	key := store.ResultKey(id, artifact)
	if err := w.store.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("cannot save %s: %w", artifact, err)
	}
	return key, nil
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received from a
// channel, or timing out after t. ok will be false if the timeout occurred or
// if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
