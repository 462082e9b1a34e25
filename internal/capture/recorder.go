package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	sampleRate = 16000
	frameSize  = 1024
)

// Recorder owns the default input stream and pushes fixed-duration
// PCM chunks (mono, 16 kHz, float32 in [-1, 1]) while started.
// One Recorder owns at most one stream at a time.
type Recorder struct {
	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewRecorder() *Recorder { return &Recorder{} }

// Init acquires the audio subsystem. This is where a denied
// microphone surfaces, so callers treat a failure as fatal.
func (r *Recorder) Init() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrMicAccess, err)
	}
	return nil
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Start opens the input stream and begins emitting chunks on the
// returned channel. The channel is closed after Stop.
func (r *Recorder) Start(chunk time.Duration) (<-chan []float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil, fmt.Errorf("recorder already started")
	}

	buf := make([]float32, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMicAccess, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: %v", ErrMicAccess, err)
	}

	if chunk <= 0 {
		chunk = time.Second
	}
	chunkSamples := int(float64(sampleRate) * chunk.Seconds())

	out := make(chan []float32, 8)
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.running = true

	go func() {
		defer close(r.done)
		defer close(out)
		defer stream.Close()
		defer stream.Stop()

		acc := make([]float32, 0, chunkSamples)

		for {
			select {
			case <-r.stop:
				return
			default:
			}

			if err := stream.Read(); err != nil {
				// transient read errors skip the frame
				continue
			}
			acc = append(acc, buf...)

			if len(acc) >= chunkSamples {
				chunk := append([]float32(nil), acc...)
				acc = acc[:0]

				select {
				case out <- chunk:
				case <-r.stop:
					return
				default:
					// consumer stalled, drop the chunk
				}
			}
		}
	}()

	return out, nil
}

// Stop halts the stream and releases it. No-op when idle.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.running = false

	close(r.stop)
	<-r.done
}
