package speech

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"grannypad/internal/logging"
)

const (
	// Neutral espeak-ng words-per-minute and pitch.
	neutralSpeed = 175
	neutralPitch = 50

	DefaultRate  = 0.9
	DefaultPitch = 0.8

	voiceListTimeout = 3 * time.Second
)

// Option configures a Narrator or a Recognizer.
type Option func(*options)

type options struct {
	exec     Executor
	lookPath func(string) (string, error)
	logger   *log.Logger
}

func defaultOptions() options {
	return options{
		exec:     commandExecutor{},
		lookPath: exec.LookPath,
		logger:   logging.Discard(),
	}
}

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(e Executor) Option {
	return func(o *options) {
		if e != nil {
			o.exec = e
		}
	}
}

// WithLookPath replaces the PATH lookup used for capability checks.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(o *options) {
		if fn != nil {
			o.lookPath = fn
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type NarratorConfig struct {
	Binary    string
	Preferred []string
	Rate      float64
	Pitch     float64
}

// Narrator reads remarks aloud. At most one utterance plays at a time: Say
// cancels whatever is still speaking.
type Narrator struct {
	cfg NarratorConfig
	options

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	voice   *Voice
	resolve bool
	closed  bool
}

func NewNarrator(cfg NarratorConfig, opts ...Option) *Narrator {
	cfg.Binary = strings.TrimSpace(cfg.Binary)
	if cfg.Binary == "" {
		cfg.Binary = "espeak-ng"
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.Pitch <= 0 {
		cfg.Pitch = DefaultPitch
	}
	n := &Narrator{cfg: cfg, options: defaultOptions(), resolve: true}
	for _, opt := range opts {
		opt(&n.options)
	}
	return n
}

// Available reports whether the synthesizer binary can be found.
func (n *Narrator) Available() bool {
	_, err := n.lookPath(n.cfg.Binary)
	return err == nil
}

// Prepare picks the voice now so the first remark does not wait on the
// voice listing.
func (n *Narrator) Prepare() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || !n.Available() {
		return
	}
	n.resolveLocked()
}

func (n *Narrator) resolveLocked() {
	if !n.resolve {
		return
	}
	n.resolve = false
	if v, ok := n.pickLocked(); ok {
		n.voice = &v
	}
}

// Say speaks text, replacing any utterance in progress. A missing
// synthesizer is not an error; the remark simply stays silent.
func (n *Narrator) Say(text string) {
	text = strings.TrimSpace(text)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
	if n.closed || text == "" || !n.Available() {
		return
	}
	n.resolveLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	n.cancel = cancel
	n.done = done
	args := n.args(text)
	go func() {
		defer close(done)
		if err := n.exec.Run(ctx, n.cfg.Binary, args, nil); err != nil && ctx.Err() == nil {
			n.logger.Debug("narration failed", "err", err)
		}
	}()
}

// Speaking reports whether an utterance is still playing.
func (n *Narrator) Speaking() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.done == nil {
		return false
	}
	select {
	case <-n.done:
		return false
	default:
		return true
	}
}

// Stop cancels the current utterance, if any.
func (n *Narrator) Stop() {
	n.mu.Lock()
	n.stopLocked()
	n.mu.Unlock()
}

// Close stops speech and refuses further utterances.
func (n *Narrator) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
	n.closed = true
	return nil
}

func (n *Narrator) stopLocked() {
	if n.cancel == nil {
		return
	}
	n.cancel()
	<-n.done
	n.cancel = nil
	n.done = nil
}

// Voices lists what the synthesizer offers.
func (n *Narrator) Voices(ctx context.Context) ([]Voice, error) {
	if !n.Available() {
		return nil, errors.New(n.cfg.Binary + " not found on PATH")
	}
	var lines []string
	if err := n.exec.Run(ctx, n.cfg.Binary, []string{"--voices"}, func(line string) {
		lines = append(lines, line)
	}); err != nil {
		return nil, err
	}
	return ParseVoices(lines), nil
}

// Selected returns the voice Say would use, listing voices if needed.
func (n *Narrator) Selected(ctx context.Context) (Voice, bool, error) {
	voices, err := n.Voices(ctx)
	if err != nil {
		return Voice{}, false, err
	}
	v, ok := PickVoice(voices, n.cfg.Preferred)
	return v, ok, nil
}

func (n *Narrator) pickLocked() (Voice, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), voiceListTimeout)
	defer cancel()
	v, ok, err := n.Selected(ctx)
	if err != nil {
		n.logger.Debug("voice listing failed, using synthesizer default", "err", err)
		return Voice{}, false
	}
	if ok {
		n.logger.Debug("narrator voice selected", "voice", v.Name, "language", v.Language)
	}
	return v, ok
}

func (n *Narrator) args(text string) []string {
	args := []string{
		"-s", strconv.Itoa(int(float64(neutralSpeed)*n.cfg.Rate + 0.5)),
		"-p", strconv.Itoa(int(float64(neutralPitch)*n.cfg.Pitch + 0.5)),
	}
	if n.voice != nil {
		args = append(args, "-v", n.voice.ID())
	}
	return append(args, "--", text)
}
