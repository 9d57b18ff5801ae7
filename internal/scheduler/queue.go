package scheduler

import (
	"github.com/enriquebris/goconcurrentqueue"
)

// pendingQueue holds job ids waiting for a slot, oldest first.
// Callers serialize access through the scheduler mutex.
type pendingQueue struct {
	fifo *goconcurrentqueue.FIFO
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{fifo: goconcurrentqueue.NewFIFO()}
}

func (q *pendingQueue) push(id string) error {
	return q.fifo.Enqueue(id)
}

// pop returns the head of the queue
func (q *pendingQueue) pop() (string, bool) {
	if q.fifo.GetLen() == 0 {
		return "", false
	}
	v, err := q.fifo.Dequeue()
	if err != nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// remove drops id from anywhere in the queue
func (q *pendingQueue) remove(id string) bool {
	for i := 0; i < q.fifo.GetLen(); i++ {
		v, err := q.fifo.Get(i)
		if err != nil {
			return false
		}
		if v == id {
			return q.fifo.Remove(i) == nil
		}
	}
	return false
}

func (q *pendingQueue) len() int {
	return q.fifo.GetLen()
}
