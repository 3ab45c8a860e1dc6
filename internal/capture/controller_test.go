package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"grannypad/internal/todo"
)

type stubConverter struct {
	mu         sync.Mutex
	textTasks  []todo.Task
	imageTasks []todo.Task
	err        error
	commentary string
	prompts    []string
	images     []string
	seeds      []string
	block      chan struct{}
	started    chan struct{}
}

func (s *stubConverter) ConvertText(ctx context.Context, prompt string) ([]todo.Task, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	block, started := s.block, s.started
	s.mu.Unlock()
	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}
	return s.textTasks, s.err
}

func (s *stubConverter) ConvertImage(ctx context.Context, data []byte, mimeType string) ([]todo.Task, error) {
	s.mu.Lock()
	s.images = append(s.images, mimeType)
	s.mu.Unlock()
	return s.imageTasks, s.err
}

func (s *stubConverter) Commentary(ctx context.Context, seed string) string {
	s.mu.Lock()
	s.seeds = append(s.seeds, seed)
	s.mu.Unlock()
	return s.commentary
}

type stubRecognizer struct {
	supported  bool
	listening  bool
	transcript string
	resets     int
}

func (r *stubRecognizer) Supported() bool { return r.supported }
func (r *stubRecognizer) Listening() bool { return r.listening }
func (r *stubRecognizer) Start(context.Context) error {
	r.listening = true
	return nil
}
func (r *stubRecognizer) Stop() error {
	r.listening = false
	return nil
}
func (r *stubRecognizer) Transcript() string { return r.transcript }
func (r *stubRecognizer) Reset() {
	r.transcript = ""
	r.resets++
}

func newStore(texts ...string) *todo.Store {
	s := todo.NewStore()
	tasks := make([]todo.Task, len(texts))
	for i, text := range texts {
		tasks[i] = todo.Task{ID: text, Text: text}
	}
	s.MergeUnique(tasks)
	return s
}

func TestSubmitAddsTasksAndAsksForCommentary(t *testing.T) {
	conv := &stubConverter{
		textTasks:  []todo.Task{{ID: "1", Text: "Buy milk", Due: todo.ParseDate("2024-01-02")}},
		commentary: "About time you got to that!",
	}
	store := newStore()
	c := NewController(conv, store)
	c.SetText("buy milk tomorrow")

	res, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.Outcome != OutcomeAdded || res.Added != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Commentary != "About time you got to that!" || c.Commentary() != res.Commentary {
		t.Fatalf("unexpected commentary %q", res.Commentary)
	}
	if len(conv.seeds) != 1 || conv.seeds[0] != "buy milk tomorrow" {
		t.Fatalf("commentary must be seeded with the prompt, got %v", conv.seeds)
	}
	items := store.Items()
	if len(items) != 1 || todo.FormatDate(items[0].Due) != "2024-01-02" {
		t.Fatalf("unexpected store contents %+v", items)
	}
	if c.Text() != "" || c.Busy() {
		t.Fatal("expected text buffer cleared and busy reset")
	}
}

func TestSubmitEmptyResultIsNotUnderstood(t *testing.T) {
	conv := &stubConverter{}
	c := NewController(conv, newStore())
	c.SetText("asdf qwer")

	res, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.Outcome != OutcomeNotUnderstood || res.Commentary != NotUnderstoodCommentary {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(conv.seeds) != 0 {
		t.Fatal("no commentary request expected")
	}
}

func TestSubmitDuplicateOnly(t *testing.T) {
	conv := &stubConverter{textTasks: []todo.Task{{ID: "9", Text: "  BUY MILK"}}}
	store := newStore("Buy milk")
	c := NewController(conv, store)
	c.SetText("buy milk")

	res, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.Outcome != OutcomeDuplicate || res.Added != 0 || res.Commentary != DuplicateCommentary {
		t.Fatalf("unexpected result %+v", res)
	}
	if store.Len() != 1 {
		t.Fatalf("expected no new tasks, got %d", store.Len())
	}
	if len(conv.seeds) != 0 {
		t.Fatal("duplicates must not trigger a commentary request")
	}
}

func TestSubmitTransportFailure(t *testing.T) {
	conv := &stubConverter{err: errors.New("connection refused")}
	c := NewController(conv, newStore())
	c.SetText("buy milk")

	res, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.Outcome != OutcomeFailed || res.Commentary != FailureCommentary {
		t.Fatalf("unexpected result %+v", res)
	}
	if c.Busy() {
		t.Fatal("busy must reset after a failure")
	}
	if c.Text() != "" {
		t.Fatal("text buffer must reset after a failure")
	}
}

func TestSubmitWithoutInput(t *testing.T) {
	c := NewController(&stubConverter{}, newStore())
	c.SetText("   ")
	if c.CanSubmit() {
		t.Fatal("blank text must not be submittable")
	}
	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrNoInput) {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}

	if _, err := c.SelectModality(context.Background(), ModalityImage); err != nil {
		t.Fatalf("SelectModality returned error: %v", err)
	}
	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrNoInput) {
		t.Fatalf("expected ErrNoInput without an image, got %v", err)
	}
}

func TestSubmitIsReentrancyGuarded(t *testing.T) {
	conv := &stubConverter{
		textTasks: []todo.Task{{ID: "1", Text: "Buy milk"}},
		block:     make(chan struct{}),
		started:   make(chan struct{}),
	}
	c := NewController(conv, newStore())
	c.SetText("buy milk")

	done := make(chan Result, 1)
	go func() {
		res, _ := c.Submit(context.Background())
		done <- res
	}()
	<-conv.started

	if !c.Busy() || c.CanSubmit() {
		t.Fatal("expected busy while the first submission is outstanding")
	}
	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, err := c.SelectModality(context.Background(), ModalityVoice); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected modality switch to be refused while busy, got %v", err)
	}

	close(conv.block)
	select {
	case res := <-done:
		if res.Outcome != OutcomeAdded {
			t.Fatalf("unexpected result %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submission did not finish")
	}
	if len(conv.prompts) != 1 {
		t.Fatalf("expected exactly one conversion, got %d", len(conv.prompts))
	}
}

func TestVoiceModality(t *testing.T) {
	rec := &stubRecognizer{supported: true}
	conv := &stubConverter{textTasks: []todo.Task{{ID: "1", Text: "Call mom"}}, commentary: "Finally."}
	c := NewController(conv, newStore(), WithRecognizer(rec))

	action, err := c.SelectModality(context.Background(), ModalityVoice)
	if err != nil || action != ActionListening || !rec.listening {
		t.Fatalf("expected listening to start, got %v %v", action, err)
	}
	rec.transcript = "call mom tonight"

	action, err = c.SelectModality(context.Background(), ModalityVoice)
	if err != nil || action != ActionStoppedListening || rec.listening {
		t.Fatalf("expected listening to stop, got %v %v", action, err)
	}

	c.SetText("ignored outside text modality")
	if c.Text() != "" {
		t.Fatal("SetText must be ignored in voice modality")
	}

	res, err := c.Submit(context.Background())
	if err != nil || res.Outcome != OutcomeAdded {
		t.Fatalf("unexpected submit %+v %v", res, err)
	}
	if conv.prompts[0] != "call mom tonight" {
		t.Fatalf("expected transcript as prompt, got %q", conv.prompts[0])
	}
	if rec.resets != 1 || rec.transcript != "" {
		t.Fatal("transcript must be reset after a voice submission")
	}
}

func TestTextSubmissionKeepsTranscript(t *testing.T) {
	rec := &stubRecognizer{supported: true, transcript: "left over"}
	conv := &stubConverter{textTasks: []todo.Task{{ID: "1", Text: "Call mom"}}}
	c := NewController(conv, newStore(), WithRecognizer(rec))
	c.SetText("call mom")
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if rec.resets != 0 || rec.transcript != "left over" {
		t.Fatal("text submissions must not touch the transcript")
	}
}

func TestVoiceUnsupported(t *testing.T) {
	c := NewController(&stubConverter{}, newStore())
	action, err := c.SelectModality(context.Background(), ModalityVoice)
	if err != nil {
		t.Fatalf("SelectModality returned error: %v", err)
	}
	if action != ActionVoiceUnsupported {
		t.Fatalf("expected unsupported action, got %v", action)
	}
	if c.CanSubmit() {
		t.Fatal("voice submit must be disabled without a recognizer")
	}
}

func TestImageSubmission(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "poster.png")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	conv := &stubConverter{imageTasks: []todo.Task{{ID: "e1", Text: "Bake sale"}}, commentary: "Bring cookies."}
	c := NewController(conv, newStore())

	action, err := c.SelectModality(context.Background(), ModalityImage)
	if err != nil || action != ActionPromptImage {
		t.Fatalf("expected picker prompt, got %v %v", action, err)
	}
	img, err := c.LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage returned error: %v", err)
	}
	if img.MimeType != "image/png" {
		t.Fatalf("unexpected mime type %q", img.MimeType)
	}

	res, err := c.Submit(context.Background())
	if err != nil || res.Outcome != OutcomeAdded {
		t.Fatalf("unexpected submit %+v %v", res, err)
	}
	if len(conv.images) != 1 || conv.images[0] != "image/png" {
		t.Fatalf("unexpected image calls %v", conv.images)
	}
	if conv.seeds[0] != ImagePrompt {
		t.Fatalf("expected fixed image prompt as seed, got %q", conv.seeds[0])
	}
	if _, ok := c.Image(); ok {
		t.Fatal("image buffer must be cleared")
	}
}

func TestImageEmptyResultIsNotUnderstood(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blank.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := NewController(&stubConverter{}, newStore())
	if _, err := c.SelectModality(context.Background(), ModalityImage); err != nil {
		t.Fatalf("SelectModality: %v", err)
	}
	if _, err := c.LoadImage(path); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	res, err := c.Submit(context.Background())
	if err != nil || res.Commentary != NotUnderstoodCommentary {
		t.Fatalf("unexpected submit %+v %v", res, err)
	}
}

func TestReadImageRejectsText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("just words"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadImage(path); err == nil {
		t.Fatal("expected non-image to be rejected")
	}
}

func TestLeavingVoiceStopsListening(t *testing.T) {
	rec := &stubRecognizer{supported: true}
	c := NewController(&stubConverter{}, newStore(), WithRecognizer(rec))
	if _, err := c.SelectModality(context.Background(), ModalityVoice); err != nil {
		t.Fatalf("SelectModality: %v", err)
	}
	if _, err := c.SelectModality(context.Background(), ModalityText); err != nil {
		t.Fatalf("SelectModality: %v", err)
	}
	if rec.listening {
		t.Fatal("switching to text must end the listening session")
	}
	if c.Modality() != ModalityText {
		t.Fatalf("unexpected modality %v", c.Modality())
	}
}

func TestWithoutCommentarySkipsRemark(t *testing.T) {
	conv := &stubConverter{
		textTasks:  []todo.Task{{ID: "1", Text: "Buy milk"}},
		commentary: "should not be asked",
	}
	c := NewController(conv, newStore(), WithoutCommentary())
	c.SetText("buy milk")

	res, err := c.Submit(context.Background())
	if err != nil || res.Outcome != OutcomeAdded || res.Commentary != "" {
		t.Fatalf("unexpected submit %+v %v", res, err)
	}
	if len(conv.seeds) != 0 {
		t.Fatalf("commentary must not be requested, got %v", conv.seeds)
	}

	conv.err = errors.New("offline")
	c.SetText("call mom")
	res, _ = c.Submit(context.Background())
	if res.Commentary != FailureCommentary {
		t.Fatalf("fixed remarks still apply, got %q", res.Commentary)
	}
}
