package copilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"taskmind/internal/detect"
	"taskmind/internal/transcript"
)

type Config struct {
	EnableAutoResponse  bool
	EnableNotifications bool
	ConfidenceThreshold float64
	DebounceDelay       time.Duration
}

func DefaultOrchestratorConfig() Config {
	return Config{
		EnableAutoResponse:  true,
		EnableNotifications: true,
		ConfidenceThreshold: 0.6,
		DebounceDelay:       3 * time.Second,
	}
}

// Callbacks are the orchestrator's typed observer slots. Nil slots
// are skipped.
type Callbacks struct {
	OnOverlayShow func(resp *Response)
	OnOverlayHide func()
	OnListening   func(listening bool, transcript string)
	OnError       func(msg string)
	OnStatus      func(msg string)
}

// Listener is the capture pipeline as the orchestrator sees it.
type Listener interface {
	Start(ctx context.Context) error
	Stop()
	IsRecording() bool
	Buffer() *transcript.Buffer
}

// Notifier delivers fire-and-forget desktop notifications.
type Notifier interface {
	Notify(title, body string)
}

// Orchestrator wires capture, detection, and response together and
// applies the debounce and confidence policies. It owns its children;
// there are no process-wide singletons.
type Orchestrator struct {
	cfg      Config
	cb       Callbacks
	listener Listener
	svc      *Service
	notifier Notifier
	log      *slog.Logger

	mu          sync.Mutex
	initialized bool
	current     *Response
	lastAutoQ   time.Time

	initAudio func() error // mic permission probe, set by the daemon
}

func NewOrchestrator(cfg Config, cb Callbacks, listener Listener, svc *Service, notifier Notifier, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		cb:       cb,
		listener: listener,
		svc:      svc,
		notifier: notifier,
		log:      log,
	}
}

// SetAudioInit registers the audio-subsystem probe run by Initialize.
func (o *Orchestrator) SetAudioInit(f func() error) { o.initAudio = f }

// Initialize requests microphone access once. A denial propagates;
// calling again when already initialized is a no-op.
func (o *Orchestrator) Initialize() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.initialized {
		return nil
	}

	if o.initAudio != nil {
		if err := o.initAudio(); err != nil {
			msg := "failed to initialize copilot: microphone access required"
			o.emitError(msg)
			return fmt.Errorf("initialize: %w", err)
		}
	}

	o.initialized = true
	o.emitStatus("TaskMind Copilot initialized and ready")
	o.log.Info("orchestrator initialized")
	return nil
}

func (o *Orchestrator) IsReady() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.initialized
}

func (o *Orchestrator) IsListening() bool { return o.listener.IsRecording() }

// StartListening begins live capture. Repeat calls are no-ops.
func (o *Orchestrator) StartListening(ctx context.Context) error {
	if !o.IsReady() {
		if err := o.Initialize(); err != nil {
			return err
		}
	}

	if o.listener.IsRecording() {
		return nil
	}

	if err := o.listener.Start(ctx); err != nil {
		o.emitError("failed to start audio capture")
		return err
	}

	o.emitListening(true, "")
	o.emitStatus("Listening for meeting questions...")
	return nil
}

// StopListening halts capture. No-op when not listening.
func (o *Orchestrator) StopListening() {
	if !o.listener.IsRecording() {
		return
	}

	o.listener.Stop()
	o.emitListening(false, "")
	o.emitStatus("Copilot paused")
}

func (o *Orchestrator) ToggleListening(ctx context.Context) error {
	if o.listener.IsRecording() {
		o.StopListening()
		return nil
	}
	return o.StartListening(ctx)
}

func (o *Orchestrator) UpdateTaskContext(tc TaskContext) {
	o.svc.UpdateTaskContext(tc)
}

// HandleTranscript is wired as the pipeline's transcript observer.
func (o *Orchestrator) HandleTranscript(text string) {
	o.emitListening(true, text)
}

// HandleQuestion is wired as the pipeline's question observer. A
// question arriving within the debounce window of the previously
// accepted one is dropped entirely, not queued.
func (o *Orchestrator) HandleQuestion(q detect.Question) {
	o.mu.Lock()
	now := time.Now()
	if now.Sub(o.lastAutoQ) < o.cfg.DebounceDelay {
		o.mu.Unlock()
		o.log.Debug("question debounced", "question", q.Text)
		return
	}
	o.lastAutoQ = now
	auto := o.cfg.EnableAutoResponse
	o.mu.Unlock()

	if !auto {
		o.log.Debug("auto-response disabled, ignoring question", "question", q.Text)
		return
	}

	go o.respond(q.Text, q.Context, false)
}

// AskManual bypasses the debounce and the auto-response flag but
// still obeys the confidence gate.
func (o *Orchestrator) AskManual(question string) {
	go o.respond(question, "", true)
}

func (o *Orchestrator) respond(question, meetingContext string, manual bool) {
	o.emitStatus("Analyzing question...")

	// no deadline here: a hung completion stalls only this attempt
	ctx := context.Background()

	var (
		resp *Response
		err  error
	)
	if manual {
		resp, err = o.svc.Ask(ctx, question)
	} else {
		resp, err = o.svc.Process(ctx, question, meetingContext)
	}

	switch {
	case errors.Is(err, ErrNoContext):
		o.emitStatus("Question detected but insufficient context")
		return
	case err != nil:
		o.log.Error("question processing failed", "question", question, "err", err)
		o.emitError("failed to process question")
		return
	}

	if resp.Confidence < o.cfg.ConfidenceThreshold {
		o.log.Info("response below confidence threshold",
			"confidence", resp.Confidence, "threshold", o.cfg.ConfidenceThreshold)
		o.emitStatus("Question detected but insufficient context")
		return
	}

	o.mu.Lock()
	o.current = resp
	notify := o.cfg.EnableNotifications
	o.mu.Unlock()

	o.emitShow(resp)
	if notify && o.notifier != nil {
		o.notifier.Notify("TaskMind Copilot", fmt.Sprintf("Q: %s\nA: %s", truncate(question, 50), resp.Answer))
	}

	o.log.Info("question answered", "confidence", resp.Confidence, "answer", resp.Answer)
}

// RepeatLast re-emits the current response without a new model call.
func (o *Orchestrator) RepeatLast() {
	o.mu.Lock()
	resp := o.current
	o.mu.Unlock()

	if resp == nil {
		o.emitError("no previous response to repeat")
		return
	}

	o.emitShow(resp)
	o.log.Info("repeated last response")
}

func (o *Orchestrator) CurrentResponse() *Response {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.current
}

func (o *Orchestrator) ClearHistory() {
	o.svc.ClearHistory()

	o.mu.Lock()
	o.current = nil
	o.mu.Unlock()
}

func (o *Orchestrator) TranscriptEntries() []transcript.Entry {
	return o.listener.Buffer().Entries()
}

// Destroy stops listening and drops all state. Only re-Initialize is
// valid afterwards.
func (o *Orchestrator) Destroy() {
	o.StopListening()

	o.mu.Lock()
	o.initialized = false
	o.current = nil
	o.mu.Unlock()

	o.log.Info("orchestrator destroyed")
}

func (o *Orchestrator) emitShow(resp *Response) {
	if o.cb.OnOverlayShow != nil {
		o.cb.OnOverlayShow(resp)
	}
}

func (o *Orchestrator) emitListening(listening bool, transcript string) {
	if o.cb.OnListening != nil {
		o.cb.OnListening(listening, transcript)
	}
}

func (o *Orchestrator) emitError(msg string) {
	if o.cb.OnError != nil {
		o.cb.OnError(msg)
	}
}

func (o *Orchestrator) emitStatus(msg string) {
	if o.cb.OnStatus != nil {
		o.cb.OnStatus(msg)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
