// Package capture turns whatever the user gave the notepad (typed text, a
// dictated transcript or an image) into tasks and a grandma remark.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"grannypad/internal/logging"
	"grannypad/internal/todo"
)

// Fixed remarks for the outcomes that do not ask the model for commentary.
const (
	DuplicateCommentary     = "Looks like you've already got that on your list, sweetie. Are you trying to pull a fast one on your old grandma?"
	NotUnderstoodCommentary = "I looked, and I looked, but I couldn't make heads or tails of that. Try again, dear."
	FailureCommentary       = "Oh dear, the wires are crossed somewhere. Maybe try that again later."
	UnsupportedVoiceMessage = "Sorry, your terminal can't hear you, dear. Set voice.command in the config."

	ImagePrompt = "An event poster or image was uploaded."
)

var (
	ErrBusy    = errors.New("capture: submission already in progress")
	ErrNoInput = errors.New("capture: nothing to submit")
)

type Modality int

const (
	ModalityText Modality = iota
	ModalityVoice
	ModalityImage
)

func (m Modality) String() string {
	switch m {
	case ModalityText:
		return "text"
	case ModalityVoice:
		return "voice"
	case ModalityImage:
		return "image"
	default:
		return "unknown"
	}
}

// Action tells the host what it has to do after a modality switch.
type Action int

const (
	ActionNone Action = iota
	ActionPromptImage
	ActionListening
	ActionStoppedListening
	ActionVoiceUnsupported
)

// Converter is the model boundary.
type Converter interface {
	ConvertText(ctx context.Context, prompt string) ([]todo.Task, error)
	ConvertImage(ctx context.Context, data []byte, mimeType string) ([]todo.Task, error)
	Commentary(ctx context.Context, seed string) string
}

// Recognizer is the speech-to-text collaborator.
type Recognizer interface {
	Supported() bool
	Listening() bool
	Start(ctx context.Context) error
	Stop() error
	Transcript() string
	Reset()
}

// Image is a picked image waiting to be submitted.
type Image struct {
	Name     string
	MimeType string
	Data     []byte
}

// Outcome classifies what a submission did.
type Outcome int

const (
	OutcomeAdded Outcome = iota
	OutcomeDuplicate
	OutcomeNotUnderstood
	OutcomeFailed
)

type Result struct {
	Outcome    Outcome
	Added      int
	Commentary string
}

type Controller struct {
	converter  Converter
	recognizer Recognizer
	store      *todo.Store
	logger     *log.Logger
	quiet      bool

	mu         sync.Mutex
	modality   Modality
	text       string
	image      *Image
	busy       bool
	commentary string
}

type Option func(*Controller)

func WithRecognizer(r Recognizer) Option {
	return func(c *Controller) {
		if r != nil {
			c.recognizer = r
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithoutCommentary skips the model remark after tasks are added. The fixed
// remarks for the other outcomes are still set.
func WithoutCommentary() Option {
	return func(c *Controller) {
		c.quiet = true
	}
}

func NewController(converter Converter, store *todo.Store, opts ...Option) *Controller {
	c := &Controller{
		converter:  converter,
		store:      store,
		recognizer: unsupportedRecognizer{},
		logger:     logging.Discard(),
		modality:   ModalityText,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Modality() Modality {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modality
}

func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

func (c *Controller) Transcript() string {
	return c.recognizer.Transcript()
}

func (c *Controller) Listening() bool {
	return c.recognizer.Listening()
}

func (c *Controller) VoiceSupported() bool {
	return c.recognizer.Supported()
}

// Image returns the pending image, if any.
func (c *Controller) Image() (Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.image == nil {
		return Image{}, false
	}
	return *c.image, true
}

func (c *Controller) Commentary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commentary
}

// ClearCommentary dismisses the current remark.
func (c *Controller) ClearCommentary() {
	c.mu.Lock()
	c.commentary = ""
	c.mu.Unlock()
}

// SelectModality switches the active input channel. Selecting voice toggles
// a listening session; selecting image asks the host to open its picker.
// Leaving voice ends any session still running.
func (c *Controller) SelectModality(ctx context.Context, m Modality) (Action, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ActionNone, ErrBusy
	}
	c.modality = m
	c.mu.Unlock()

	if m != ModalityVoice && c.recognizer.Listening() {
		if err := c.recognizer.Stop(); err != nil {
			return ActionNone, fmt.Errorf("stop listening: %w", err)
		}
	}

	switch m {
	case ModalityVoice:
		if !c.recognizer.Supported() {
			return ActionVoiceUnsupported, nil
		}
		if c.recognizer.Listening() {
			if err := c.recognizer.Stop(); err != nil {
				return ActionNone, fmt.Errorf("stop listening: %w", err)
			}
			return ActionStoppedListening, nil
		}
		if err := c.recognizer.Start(ctx); err != nil {
			return ActionNone, fmt.Errorf("start listening: %w", err)
		}
		return ActionListening, nil
	case ModalityImage:
		return ActionPromptImage, nil
	default:
		return ActionNone, nil
	}
}

// SetText updates the typed buffer. It is ignored outside text modality.
func (c *Controller) SetText(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.modality != ModalityText {
		return
	}
	c.text = s
}

// SetImage stores a picked image. It is ignored outside image modality.
func (c *Controller) SetImage(img Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.modality != ModalityImage || len(img.Data) == 0 {
		return
	}
	c.image = &img
}

// CanSubmit reports whether Submit would do anything right now.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	return c.hasInputLocked()
}

func (c *Controller) hasInputLocked() bool {
	switch c.modality {
	case ModalityText:
		return strings.TrimSpace(c.text) != ""
	case ModalityVoice:
		return strings.TrimSpace(c.recognizer.Transcript()) != ""
	case ModalityImage:
		return c.image != nil
	default:
		return false
	}
}

// Submit converts the pending input and merges the resulting tasks into the
// store. Only one submission runs at a time; a second call while one is
// outstanding returns ErrBusy without side effects.
func (c *Controller) Submit(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return Result{}, ErrBusy
	}
	if !c.hasInputLocked() {
		c.mu.Unlock()
		return Result{}, ErrNoInput
	}
	c.busy = true
	c.commentary = ""
	modality := c.modality
	text := c.text
	image := c.image
	c.mu.Unlock()

	var prompt string
	var tasks []todo.Task
	var err error
	switch modality {
	case ModalityText:
		prompt = text
		tasks, err = c.converter.ConvertText(ctx, prompt)
	case ModalityVoice:
		prompt = c.recognizer.Transcript()
		tasks, err = c.converter.ConvertText(ctx, prompt)
	case ModalityImage:
		prompt = ImagePrompt
		tasks, err = c.converter.ConvertImage(ctx, image.Data, image.MimeType)
	}

	res := c.resolve(ctx, modality, prompt, tasks, err)

	c.mu.Lock()
	c.busy = false
	c.commentary = res.Commentary
	c.text = ""
	c.image = nil
	c.mu.Unlock()
	if modality == ModalityVoice {
		c.recognizer.Reset()
	}
	return res, nil
}

func (c *Controller) resolve(ctx context.Context, modality Modality, prompt string, tasks []todo.Task, err error) Result {
	if err != nil {
		c.logger.Error("submission failed", "modality", modality, "err", err)
		return Result{Outcome: OutcomeFailed, Commentary: FailureCommentary}
	}
	if len(tasks) == 0 {
		c.logger.Info("nothing extracted", "modality", modality)
		return Result{Outcome: OutcomeNotUnderstood, Commentary: NotUnderstoodCommentary}
	}
	added := c.store.MergeUnique(tasks)
	if added == 0 {
		c.logger.Info("all candidates already listed", "modality", modality, "candidates", len(tasks))
		return Result{Outcome: OutcomeDuplicate, Commentary: DuplicateCommentary}
	}
	c.logger.Info("tasks added", "modality", modality, "added", added, "candidates", len(tasks))
	if c.quiet {
		return Result{Outcome: OutcomeAdded, Added: added}
	}
	return Result{
		Outcome:    OutcomeAdded,
		Added:      added,
		Commentary: c.converter.Commentary(ctx, prompt),
	}
}

type unsupportedRecognizer struct{}

func (unsupportedRecognizer) Supported() bool             { return false }
func (unsupportedRecognizer) Listening() bool             { return false }
func (unsupportedRecognizer) Start(context.Context) error { return errors.New("speech recognition unavailable") }
func (unsupportedRecognizer) Stop() error                 { return nil }
func (unsupportedRecognizer) Transcript() string          { return "" }
func (unsupportedRecognizer) Reset()                      {}
