// ABOUTME: Session queue and next-track selection by loop mode
// ABOUTME: The queue is guarded by its own mutex and copied on read
package player

import (
	"sync"

	"github.com/samber/lo"
)

// Queue is a FIFO of track items
type Queue struct {
	mu    sync.Mutex
	items []TrackItem
}

// Push appends item to the tail
func (q *Queue) Push(item TrackItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// Pop removes and returns the head
func (q *Queue) Pop() (TrackItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return TrackItem{}, false
	}
	item := q.items[0]
	q.items[0] = TrackItem{}
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of queued items
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the queue
func (q *Queue) Snapshot() []TrackItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]TrackItem(nil), q.items...)
}

// Clear empties the queue and returns what was removed
func (q *Queue) Clear() []TrackItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := q.items
	q.items = nil
	return removed
}

// references reports whether any queued item reuses path
func (q *Queue) references(path string) bool {
	if path == "" {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return lo.ContainsBy(q.items, func(it TrackItem) bool { return it.PreparedPath == path })
}

// selectNext picks the item that follows current. requeue is set when the
// chosen item must be pushed back to the tail once it starts.
//
//	track, not skipped: current again
//	queue:              head, re-queued at the tail
//	none:               head
//
// A skip in track mode behaves like none.
func selectNext(mode LoopMode, skipped bool, current TrackItem, q *Queue) (next TrackItem, requeue, ok bool) {
	if mode == LoopTrack && !skipped {
		return current, false, true
	}
	next, ok = q.Pop()
	if !ok {
		return TrackItem{}, false, false
	}
	return next, mode == LoopQueue, true
}
