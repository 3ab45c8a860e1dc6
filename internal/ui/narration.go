package ui

import "sync"

// narration serializes remarks against the things that silence them. Each
// hush starts a new turn; a remark queued in an earlier turn is dropped.
type narration struct {
	n Narrator

	mu   sync.Mutex
	turn uint64
}

func newNarration(n Narrator) *narration {
	return &narration{n: n}
}

func (v *narration) enabled() bool {
	return v != nil && v.n != nil
}

func (v *narration) current() uint64 {
	if !v.enabled() {
		return 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.turn
}

// hush stops whatever is playing and invalidates queued remarks.
func (v *narration) hush() {
	if !v.enabled() {
		return
	}
	v.mu.Lock()
	v.turn++
	v.n.Stop()
	v.mu.Unlock()
}

// say speaks text unless the turn has moved on since it was queued.
func (v *narration) say(turn uint64, text string) bool {
	if !v.enabled() {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if turn != v.turn {
		return false
	}
	v.n.Say(text)
	return true
}
