package repository

import (
	"sync"

	"recurring-planner/internal/model"
)

// Notifier fans out task-list snapshots to per-owner subscribers.
// Callbacks of one subscription never run concurrently.
//
// Every snapshot carries a version taken from Stamp after the write committed
// and before the list was read. A subscription drops snapshots older than the
// last one it delivered, so the final list it sees includes every commit.
type Notifier struct {
	mu       sync.RWMutex
	next     uint64
	subs     map[uint]map[uint64]*subscription
	versions map[uint]uint64
}

type subscription struct {
	mu     sync.Mutex
	fn     func([]model.Task)
	last   uint64
	closed bool
}

func NewNotifier() *Notifier {
	return &Notifier{
		subs:     make(map[uint]map[uint64]*subscription),
		versions: make(map[uint]uint64),
	}
}

// Add registers fn for owner and returns an idempotent cancel function.
func (n *Notifier) Add(owner uint, fn func([]model.Task)) (deliver func(version uint64, tasks []model.Task), cancel func()) {
	sub := &subscription{fn: fn}

	n.mu.Lock()
	n.next++
	id := n.next
	if n.subs[owner] == nil {
		n.subs[owner] = make(map[uint64]*subscription)
	}
	n.subs[owner][id] = sub
	n.mu.Unlock()

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs[owner], id)
			if len(n.subs[owner]) == 0 {
				delete(n.subs, owner)
			}
			n.mu.Unlock()

			sub.mu.Lock()
			sub.closed = true
			sub.mu.Unlock()
		})
	}
	return sub.deliver, cancel
}

// Stamp returns the next snapshot version of owner. Versions only grow.
func (n *Notifier) Stamp(owner uint) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.versions[owner]++
	return n.versions[owner]
}

// Watched reports whether owner has at least one subscriber.
func (n *Notifier) Watched(owner uint) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[owner]) > 0
}

// Publish delivers tasks, read at version, to every subscriber of owner.
func (n *Notifier) Publish(owner uint, version uint64, tasks []model.Task) {
	n.mu.RLock()
	targets := make([]*subscription, 0, len(n.subs[owner]))
	for _, s := range n.subs[owner] {
		targets = append(targets, s)
	}
	n.mu.RUnlock()

	for _, s := range targets {
		s.deliver(version, tasks)
	}
}

func (s *subscription) deliver(version uint64, tasks []model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || version <= s.last {
		return
	}
	s.last = version
	snapshot := make([]model.Task, len(tasks))
	copy(snapshot, tasks)
	s.fn(snapshot)
}
