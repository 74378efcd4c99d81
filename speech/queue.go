package speech

import (
	"sync"
	"time"
)

// Segment is the input for a new speech node: one confirmed message or one
// document section.
type Segment struct {
	ID        string
	Text      string
	Speaker   Speaker
	CreatedAt time.Time
}

// Queue is the ordered, append-only collection of speech nodes for one
// discussion or reading context. Insertion order is chronological arrival
// order and is never rearranged; nodes are only discarded by a full Reset
// when the context changes (chapter or mode switch).
//
// The queue owns every node and its links. Adjacent nodes are linked at
// insertion time and the links never move afterwards.
type Queue struct {
	synth  Synthesizer
	events *Events

	mu    sync.RWMutex
	nodes []*Node
	byID  map[string]*Node
}

// NewQueue creates an empty queue whose nodes synthesize through synth and
// report lifecycle events through events.
func NewQueue(synth Synthesizer, events *Events) *Queue {
	return &Queue{
		synth:  synth,
		events: events,
		byID:   make(map[string]*Node),
	}
}

// Enqueue appends a node built from the segment and links the previous tail
// to it. Enqueue is idempotent on segment id: re-announcing a message the
// queue already tracks returns the existing node untouched, so duplicate
// feed deliveries never produce duplicate speech.
func (q *Queue) Enqueue(seg Segment) *Node {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.byID[seg.ID]; ok {
		return existing
	}

	node := newNode(seg.ID, seg.Text, seg.Speaker, seg.CreatedAt, q.synth, q.events)
	if len(q.nodes) > 0 {
		q.nodes[len(q.nodes)-1].setNext(node)
	}
	q.nodes = append(q.nodes, node)
	q.byID[seg.ID] = node
	return node
}

// Nodes returns an ordered snapshot for rendering. The slice is a copy;
// mutating it does not affect the queue.
func (q *Queue) Nodes() []*Node {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*Node, len(q.nodes))
	copy(out, q.nodes)
	return out
}

// Get returns the node with the given id, if the queue tracks it.
func (q *Queue) Get(id string) (*Node, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	n, ok := q.byID[id]
	return n, ok
}

// Has reports whether the queue tracks the given node.
func (q *Queue) Has(node *Node) bool {
	if node == nil {
		return false
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.byID[node.id] == node
}

// Len returns the number of tracked nodes.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.nodes)
}

// First returns the head node, or nil if the queue is empty.
func (q *Queue) First() *Node {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if len(q.nodes) == 0 {
		return nil
	}
	return q.nodes[0]
}

// FirstUnplayed returns the earliest node that has not been heard yet, or
// nil if everything has played. Autoplay resumes from here.
func (q *Queue) FirstUnplayed() *Node {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, n := range q.nodes {
		if !n.Played() {
			return n
		}
	}
	return nil
}

// Reset discards all nodes and links. Used when the surrounding context
// changes and the queue is rebuilt from scratch.
func (q *Queue) Reset() {
	q.mu.Lock()
	q.nodes = nil
	q.byID = make(map[string]*Node)
	q.mu.Unlock()

	if q.events != nil {
		q.events.emit(Event{Type: EventQueueReset})
	}
}
