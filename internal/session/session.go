// Package session drives the upload-through-completion lifecycle of a
// single document.
//
// A Controller owns one document's processing session: it uploads the
// file, starts processing, then polls the status collaborator on a fixed
// interval until a terminal state is reached. Alongside the poll loop it
// runs an elapsed-time ticker that exists purely for display and is
// uncoupled from poll outcomes. Both recurring tasks share one
// cancellation scope tied to the session, so teardown or a terminal
// transition is guaranteed to stop them together.
//
// Terminal states (completed, error) are absorbing: any response that
// arrives after one of them, or after teardown, is silently discarded.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Default intervals for the two recurring session tasks.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultTickInterval = 1 * time.Second
)

// ErrSessionActive is returned when Run is called on a controller whose
// session has already started. One controller owns exactly one session;
// create a new controller to process another document.
var ErrSessionActive = errors.New("session already active")

// State is a session lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateUploaded   State = "uploaded"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Terminal reports whether the state is absorbing.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// Progress returns the display progress percentage for the state.
// It is a pure function of state, never of elapsed time.
func (s State) Progress() int {
	switch s {
	case StateUploaded:
		return 25
	case StateProcessing:
		return 75
	case StateCompleted:
		return 100
	default:
		return 0
	}
}

// UploadResult is the upload collaborator's acceptance response.
type UploadResult struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	FileSize   int64  `json:"file_size"`
	Status     string `json:"status"`
}

// StatusResponse is one status poll response. Fields carries the
// extracted flat field map once processing has completed.
type StatusResponse struct {
	DocumentID   string         `json:"document_id"`
	Filename     string         `json:"filename"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
}

// Uploader accepts a document file and returns its assigned ID.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (UploadResult, error)
}

// Processor starts asynchronous processing for an uploaded document.
type Processor interface {
	StartProcessing(ctx context.Context, documentID string) error
}

// StatusClient reports the current processing status of a document.
type StatusClient interface {
	Status(ctx context.Context, documentID string) (StatusResponse, error)
}

// Config holds the controller's timing knobs. Zero values fall back to
// the package defaults.
type Config struct {
	PollInterval time.Duration
	TickInterval time.Duration
}

// Callbacks are invoked by the controller as the session advances.
// All callbacks are optional and are called outside the controller's
// internal lock, from the controller's own goroutines.
type Callbacks struct {
	// OnCompleted receives the full terminal payload.
	OnCompleted func(StatusResponse)
	// OnError receives a short user-facing message. Raw transport errors
	// are summarized, never passed through verbatim.
	OnError func(message string)
	// OnTick fires once per tick interval with the elapsed duration.
	// Display only.
	OnTick func(elapsed time.Duration)
}

// Session is an observable snapshot of a controller's state.
type Session struct {
	DocumentID     string
	Filename       string
	State          State
	StartedAt      time.Time
	ElapsedSeconds int
	LastError      string
}

// Controller manages one document's processing session.
type Controller struct {
	uploader  Uploader
	processor Processor
	status    StatusClient
	cfg       Config
	cb        Callbacks

	mu         sync.Mutex
	state      State
	documentID string
	filename   string
	startedAt  time.Time
	elapsed    time.Duration
	lastError  string
	result     *StatusResponse
	torn       bool
	cancel     context.CancelFunc
}

// NewController creates an idle controller for one session.
func NewController(uploader Uploader, processor Processor, status StatusClient, cfg Config, cb Callbacks) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Controller{
		uploader:  uploader,
		processor: processor,
		status:    status,
		cfg:       cfg,
		cb:        cb,
		state:     StateIdle,
	}
}

// Run executes the full lifecycle: upload, start processing, then poll
// until a terminal state or teardown. It blocks until the session ends.
//
// A completed session returns nil after OnCompleted has fired. An error
// outcome (explicit error status, or any transport failure) returns the
// surfaced error after OnError has fired; there is no automatic retry.
// Teardown during the run returns nil.
func (c *Controller) Run(ctx context.Context, filename string, data []byte) error {
	c.mu.Lock()
	if c.state != StateIdle || c.torn {
		c.mu.Unlock()
		return ErrSessionActive
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateUploading
	c.filename = filename
	c.mu.Unlock()
	defer cancel()

	up, err := c.uploader.Upload(runCtx, filename, data)
	if err != nil {
		return c.fail("upload failed: " + shortError(err))
	}
	if !c.advance(StateUploaded, up.DocumentID) {
		return nil // torn down mid-upload
	}

	if err := c.processor.StartProcessing(runCtx, up.DocumentID); err != nil {
		return c.fail("processing could not be started: " + shortError(err))
	}
	if !c.advance(StateProcessing, up.DocumentID) {
		return nil
	}

	c.mu.Lock()
	c.startedAt = time.Now()
	c.mu.Unlock()

	// Both recurring tasks share runCtx; cancelling it stops them
	// together, whether via teardown or a terminal transition.
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return c.pollLoop(gctx) })
	g.Go(func() error { return c.tickLoop(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateError && c.lastError != "" {
		return errors.New(c.lastError)
	}
	return nil
}

// pollLoop checks status immediately, then on the fixed poll interval.
func (c *Controller) pollLoop(ctx context.Context) error {
	c.checkStatus(ctx)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.checkStatus(ctx)
		}
	}
}

// tickLoop advances the display clock once per tick interval.
func (c *Controller) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.mu.Lock()
			if c.torn || c.state.Terminal() {
				c.mu.Unlock()
				continue
			}
			c.elapsed = time.Since(c.startedAt)
			elapsed := c.elapsed
			onTick := c.cb.OnTick
			c.mu.Unlock()

			if onTick != nil {
				onTick(elapsed)
			}
		}
	}
}

// checkStatus performs one status poll and applies the outcome.
// A transport failure is terminal: the session moves to StateError and
// polling stops. There is no retry; the user restarts the session.
func (c *Controller) checkStatus(ctx context.Context) {
	resp, err := c.status.Status(ctx, c.DocumentID())
	if err != nil {
		if ctx.Err() != nil {
			return // torn down while the request was in flight
		}
		c.applyFailure("status check failed: " + shortError(err))
		return
	}
	c.applyStatus(resp)
}

// applyStatus applies one poll response in arrival order. Responses
// arriving after a terminal state or after teardown are discarded and
// cause no observable change.
func (c *Controller) applyStatus(resp StatusResponse) {
	c.mu.Lock()
	if c.torn || c.state.Terminal() {
		c.mu.Unlock()
		return
	}

	var fire func()
	switch resp.Status {
	case "completed":
		c.state = StateCompleted
		r := resp
		c.result = &r
		if cb := c.cb.OnCompleted; cb != nil {
			fire = func() { cb(r) }
		}
	case "error":
		c.state = StateError
		c.lastError = resp.ErrorMessage
		if c.lastError == "" {
			c.lastError = "processing failed"
		}
		msg := c.lastError
		if cb := c.cb.OnError; cb != nil {
			fire = func() { cb(msg) }
		}
	default:
		// uploaded/processing: keep polling
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.mu.Unlock()

	if fire != nil {
		fire()
	}
	if cancel != nil {
		cancel()
	}
}

// applyFailure moves the session to StateError with a message, subject
// to the same stale-update guard as applyStatus.
func (c *Controller) applyFailure(msg string) {
	c.mu.Lock()
	if c.torn || c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.state = StateError
	c.lastError = msg
	cancel := c.cancel
	cb := c.cb.OnError
	c.mu.Unlock()

	if cb != nil {
		cb(msg)
	}
	if cancel != nil {
		cancel()
	}
}

// fail records a pre-polling failure and returns it as an error.
func (c *Controller) fail(msg string) error {
	c.applyFailure(msg)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.torn {
		return nil
	}
	return errors.New(msg)
}

// advance moves to the next lifecycle state unless the controller has
// been torn down. Returns false if the session should stop.
func (c *Controller) advance(next State, documentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.torn || c.state.Terminal() {
		return false
	}
	c.state = next
	c.documentID = documentID
	return true
}

// Teardown releases the session immediately. Both recurring tasks stop,
// and any response that arrives afterwards is discarded. Safe to call
// multiple times and from any goroutine.
func (c *Controller) Teardown() {
	c.mu.Lock()
	c.torn = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Snapshot returns the current observable session state.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Session{
		DocumentID:     c.documentID,
		Filename:       c.filename,
		State:          c.state,
		StartedAt:      c.startedAt,
		ElapsedSeconds: int(c.elapsed / time.Second),
		LastError:      c.lastError,
	}
}

// DocumentID returns the ID assigned at upload, or "" before upload.
func (c *Controller) DocumentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.documentID
}

// Result returns the terminal payload of a completed session, or nil.
func (c *Controller) Result() *StatusResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// shortError reduces an error to a single-line summary suitable for
// display. Raw transport detail stays in logs, not in the UI.
func shortError(err error) string {
	msg := err.Error()
	const max = 120
	if len(msg) > max {
		msg = msg[:max] + "..."
	}
	return msg
}
