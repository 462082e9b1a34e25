package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"taskmind/internal/detect"
	"taskmind/internal/transcript"
)

// ErrMicAccess marks a denied or unavailable microphone. Fatal to
// Start, never retried automatically.
var ErrMicAccess = errors.New("microphone access denied")

// Transcriber converts a PCM window (mono 16 kHz float32) to text.
// An empty string is a valid result.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

// ChunkSource emits fixed-duration PCM chunks on a push basis.
type ChunkSource interface {
	Start(chunk time.Duration) (<-chan []float32, error)
	Stop()
}

type Config struct {
	ChunkDuration   time.Duration // size of one audio chunk
	ProcessInterval time.Duration // minimum spacing between detection runs
	ChunkWindow     int           // raw chunks concatenated per transcription call
	RecentEntries   int           // buffer entries fed to the detector
}

func DefaultConfig() Config {
	return Config{
		ChunkDuration:   time.Second,
		ProcessInterval: 5 * time.Second,
		ChunkWindow:     5,
		RecentEntries:   10,
	}
}

type result struct {
	seq  uint64
	text string
}

// Pipeline drives chunked capture through transcription into the
// rolling buffer and runs question detection over the recent window.
//
// Transcription calls run concurrently and may complete out of order;
// each submission carries a sequence number and results are delivered
// to the buffer in submission order. A failed or empty result still
// advances the sequence so later results are never held up.
type Pipeline struct {
	cfg Config
	src ChunkSource
	tr  Transcriber
	buf *transcript.Buffer
	det *detect.Detector
	log *slog.Logger

	onTranscript func(text string)
	onQuestion   func(q detect.Question)

	mu        sync.Mutex
	recording bool
	stop      chan struct{}
	done      chan struct{}
}

func NewPipeline(cfg Config, src ChunkSource, tr Transcriber, buf *transcript.Buffer, det *detect.Detector, log *slog.Logger) *Pipeline {
	if cfg.ChunkWindow <= 0 {
		cfg.ChunkWindow = 5
	}
	if cfg.RecentEntries <= 0 {
		cfg.RecentEntries = 10
	}

	return &Pipeline{
		cfg: cfg,
		src: src,
		tr:  tr,
		buf: buf,
		det: det,
		log: log,
	}
}

// OnTranscript registers the transcript-update observer.
func (p *Pipeline) OnTranscript(f func(text string)) { p.onTranscript = f }

// OnQuestion registers the detected-question observer.
func (p *Pipeline) OnQuestion(f func(q detect.Question)) { p.onQuestion = f }

func (p *Pipeline) Buffer() *transcript.Buffer { return p.buf }

func (p *Pipeline) IsRecording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.recording
}

// Start acquires the chunk source and runs the capture loop until
// Stop. No-op when already capturing.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.recording {
		return nil
	}

	chunks, err := p.src.Start(p.cfg.ChunkDuration)
	if err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.recording = true

	go p.run(ctx, chunks, p.stop, p.done)

	p.log.Info("audio capture started")
	return nil
}

// Stop tears down the stream and the capture loop. In-flight
// transcriptions complete on their own and their results are
// discarded. Safe to call when already idle.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.recording {
		p.mu.Unlock()
		return
	}
	p.recording = false
	stop, done := p.stop, p.done
	p.mu.Unlock()

	p.src.Stop()
	close(stop)
	<-done

	p.log.Info("audio capture stopped")
}

func (p *Pipeline) run(ctx context.Context, chunks <-chan []float32, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.ProcessInterval)
	defer ticker.Stop()

	var (
		window      [][]float32
		nextSubmit  uint64
		nextDeliver uint64
		pending     = map[uint64]string{}
		lastDetect  time.Time
		results     = make(chan result, 16)
	)

	for {
		select {
		case <-stop:
			return

		case chunk, ok := <-chunks:
			if !ok {
				continue
			}

			window = append(window, chunk)
			if len(window) > p.cfg.ChunkWindow {
				window = window[len(window)-p.cfg.ChunkWindow:]
			}

			// the whole window goes out, not just the newest chunk,
			// to give the transcriber more acoustic context
			pcm := concat(window)
			seq := nextSubmit
			nextSubmit++

			go func() {
				text, err := p.tr.Transcribe(ctx, pcm)
				if err != nil {
					p.log.Warn("transcription failed, skipping chunk", "seq", seq, "err", err)
					text = ""
				}
				select {
				case results <- result{seq: seq, text: text}:
				case <-stop:
				}
			}()

		case res := <-results:
			pending[res.seq] = res.text

			for {
				text, ok := pending[nextDeliver]
				if !ok {
					break
				}
				delete(pending, nextDeliver)
				nextDeliver++

				if strings.TrimSpace(text) == "" {
					continue
				}

				now := time.Now()
				p.buf.Append(text, now)
				if p.onTranscript != nil {
					p.onTranscript(text)
				}

				if now.Sub(lastDetect) > p.cfg.ProcessInterval {
					p.detect()
					lastDetect = now
				}
			}

		case <-ticker.C:
			// safety net: re-run detection even when no new audio
			// arrived to trip the gate above
			p.detect()
		}
	}
}

func (p *Pipeline) detect() {
	p.buf.EvictOlderThan(time.Now())

	recent := p.buf.RecentText(p.cfg.RecentEntries)
	if recent == "" {
		return
	}

	q, ok := p.det.Detect(recent)
	if !ok {
		return
	}

	p.log.Info("question detected", "question", q.Text)
	if p.onQuestion != nil {
		p.onQuestion(q)
	}
}

// IngestPCM pushes pre-recorded audio through transcription, the
// buffer, and a one-shot detection pass. Used for meeting-recording
// files; works whether or not live capture is running.
func (p *Pipeline) IngestPCM(ctx context.Context, pcm []float32) error {
	text, err := p.tr.Transcribe(ctx, pcm)
	if err != nil {
		return fmt.Errorf("transcribe ingest: %w", err)
	}

	if strings.TrimSpace(text) == "" {
		return nil
	}

	p.buf.Append(text, time.Now())
	if p.onTranscript != nil {
		p.onTranscript(text)
	}

	p.detect()
	return nil
}

func concat(window [][]float32) []float32 {
	n := 0
	for _, c := range window {
		n += len(c)
	}

	out := make([]float32, 0, n)
	for _, c := range window {
		out = append(out, c...)
	}

	return out
}
