package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrUnsupported = errors.New("speech: no recorder command configured")

// Recognizer runs a dictation command and collects each line it prints on
// stdout into the live transcript. The command keeps running until Stop.
type Recognizer struct {
	command []string
	options

	mu       sync.Mutex
	lines    []string
	cancel   context.CancelFunc
	done     chan struct{}
	onUpdate func()
}

func NewRecognizer(command []string, opts ...Option) *Recognizer {
	r := &Recognizer{options: defaultOptions()}
	for _, part := range command {
		if part = strings.TrimSpace(part); part != "" {
			r.command = append(r.command, part)
		}
	}
	for _, opt := range opts {
		opt(&r.options)
	}
	return r
}

// SetOnUpdate registers fn to run whenever the transcript or the listening
// state changes. fn is called without the recognizer lock held.
func (r *Recognizer) SetOnUpdate(fn func()) {
	r.mu.Lock()
	r.onUpdate = fn
	r.mu.Unlock()
}

func (r *Recognizer) notify() {
	r.mu.Lock()
	fn := r.onUpdate
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *Recognizer) Supported() bool {
	if len(r.command) == 0 {
		return false
	}
	_, err := r.lookPath(r.command[0])
	return err == nil
}

func (r *Recognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done != nil
}

// Start launches the recorder. Starting while already listening is a no-op.
func (r *Recognizer) Start(ctx context.Context) error {
	if !r.Supported() {
		return ErrUnsupported
	}
	r.mu.Lock()
	if r.done != nil {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go func() {
		err := r.exec.Run(runCtx, r.command[0], r.command[1:], r.appendLine)
		if err != nil && runCtx.Err() == nil {
			r.logger.Warn("recorder exited", "command", r.command[0], "err", err)
		}
		cancel()
		r.mu.Lock()
		if r.done == done {
			r.done = nil
			r.cancel = nil
		}
		r.mu.Unlock()
		close(done)
		r.notify()
	}()
	r.logger.Debug("listening", "command", r.command[0])
	r.notify()
	return nil
}

// Stop interrupts the recorder and waits for it to exit, so everything it
// flushed is part of the transcript when Stop returns.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (r *Recognizer) appendLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
	r.notify()
}

func (r *Recognizer) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.lines, " ")
}

func (r *Recognizer) Reset() {
	r.mu.Lock()
	r.lines = nil
	r.mu.Unlock()
	r.notify()
}
