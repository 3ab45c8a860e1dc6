package todo

import (
	"strings"
	"sync"
	"time"
)

// DefaultRemovalDelay matches the exit transition of a deleted row.
const DefaultRemovalDelay = 500 * time.Millisecond

type entry struct {
	task  Task
	state State
	timer Timer
}

// Store is the ordered task collection. Storage order is the user's manual
// order; display ordering is derived separately by SortForDisplay.
type Store struct {
	mu       sync.Mutex
	entries  []*entry
	clock    Clock
	delay    time.Duration
	onChange func()
	closed   bool
}

type StoreOption func(*Store)

func WithClock(c Clock) StoreOption {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithRemovalDelay(d time.Duration) StoreOption {
	return func(s *Store) {
		if d >= 0 {
			s.delay = d
		}
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		clock: SystemClock(),
		delay: DefaultRemovalDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetOnChange registers fn to run after every mutation, including removals
// fired by the deletion timer. fn is called without the store lock held.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Items returns a snapshot in storage order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Item, len(s.entries))
	for i, e := range s.entries {
		items[i] = Item{Task: e.task, State: e.state}
	}
	return items
}

// Tasks returns the active tasks in storage order. Entries waiting for
// removal are left out.
func (s *Store) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]Task, 0, len(s.entries))
	for _, e := range s.entries {
		if e.state == StateActive {
			tasks = append(tasks, e.task)
		}
	}
	return tasks
}

func (s *Store) Get(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		e := s.entries[i]
		return Item{Task: e.task, State: e.state}, true
	}
	return Item{}, false
}

// Load replaces the contents with tasks, keeping their order. Invalid or
// duplicate entries are skipped the same way MergeUnique skips them.
func (s *Store) Load(tasks []Task) int {
	s.mu.Lock()
	for _, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	s.entries = nil
	added := s.mergeLocked(tasks)
	s.mu.Unlock()
	s.notify()
	return added
}

func (s *Store) Toggle(id string) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.entries[i].task.Completed = !s.entries[i].task.Completed
	s.mu.Unlock()
	s.notify()
	return true
}

// Delete marks the task as pending removal and schedules the physical
// removal after the configured delay. It reports false when the id is
// unknown or already pending.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 || s.entries[i].state == StatePendingRemoval {
		s.mu.Unlock()
		return false
	}
	e := s.entries[i]
	e.state = StatePendingRemoval
	if s.closed || s.delay == 0 {
		s.removeLocked(id)
	} else {
		e.timer = s.clock.AfterFunc(s.delay, func() { s.finishRemoval(id) })
	}
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Store) finishRemoval(id string) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 || s.entries[i].state != StatePendingRemoval {
		s.mu.Unlock()
		return
	}
	s.removeLocked(id)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) removeLocked(id string) {
	i := s.indexOf(id)
	if i < 0 {
		return
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
}

// Reorder moves the entry at from to position to, shifting the others.
func (s *Store) Reorder(from, to int) bool {
	s.mu.Lock()
	n := len(s.entries)
	if from == to || from < 0 || to < 0 || from >= n || to >= n {
		s.mu.Unlock()
		return false
	}
	moved := s.entries[from]
	s.entries = append(s.entries[:from], s.entries[from+1:]...)
	s.entries = append(s.entries[:to], append([]*entry{moved}, s.entries[to:]...)...)
	s.mu.Unlock()
	s.notify()
	return true
}

// MergeUnique appends the tasks whose text is not already on the list and
// returns how many were added.
func (s *Store) MergeUnique(tasks []Task) int {
	s.mu.Lock()
	added := s.mergeLocked(tasks)
	s.mu.Unlock()
	if added > 0 {
		s.notify()
	}
	return added
}

func (s *Store) mergeLocked(tasks []Task) int {
	seenText := make(map[string]struct{}, len(s.entries)+len(tasks))
	seenID := make(map[string]struct{}, len(s.entries)+len(tasks))
	for _, e := range s.entries {
		seenText[TextKey(e.task.Text)] = struct{}{}
		seenID[e.task.ID] = struct{}{}
	}

	added := 0
	for _, t := range tasks {
		t.Text = strings.TrimSpace(t.Text)
		if t.Text == "" {
			continue
		}
		key := TextKey(t.Text)
		if _, dup := seenText[key]; dup {
			continue
		}
		t.ID = strings.TrimSpace(t.ID)
		if _, taken := seenID[t.ID]; t.ID == "" || taken {
			t.ID = NewID()
		}
		seenText[key] = struct{}{}
		seenID[t.ID] = struct{}{}
		s.entries = append(s.entries, &entry{task: t, state: StateActive})
		added++
	}
	return added
}

// Close cancels pending timers and drops every entry that was waiting for
// removal. Later deletes remove immediately.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		if e.state == StatePendingRemoval {
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	s.mu.Unlock()
}

func (s *Store) indexOf(id string) int {
	for i, e := range s.entries {
		if e.task.ID == id {
			return i
		}
	}
	return -1
}
