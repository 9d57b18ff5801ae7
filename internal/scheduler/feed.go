package scheduler

import (
	"sync"

	"github.com/estudioia/timeline-render/internal/model"
)

const feedBuffer = 64

// feed fans job events out to channel subscribers. A slow subscriber
// loses its oldest buffered progress events; the terminal event is
// always delivered and closes every channel.
type feed struct {
	mu       sync.Mutex
	subs     map[int]chan model.ProgressEvent
	next     int
	terminal *model.ProgressEvent
}

func newFeed() *feed {
	return &feed{subs: make(map[int]chan model.ProgressEvent)}
}

func (f *feed) subscribe() (<-chan model.ProgressEvent, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.terminal != nil {
		ch := make(chan model.ProgressEvent, 1)
		ch <- *f.terminal
		close(ch)
		return ch, func() {}
	}

	id := f.next
	f.next++
	ch := make(chan model.ProgressEvent, feedBuffer)
	f.subs[id] = ch

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(c)
		}
	}
}

func (f *feed) publish(ev model.ProgressEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.terminal != nil {
		return
	}
	for _, ch := range f.subs {
		offer(ch, ev)
	}
	if ev.IsTerminal() {
		f.terminal = &ev
		for id, ch := range f.subs {
			close(ch)
			delete(f.subs, id)
		}
	}
}

// offer never blocks. Publishers are serialized by the feed mutex so
// after dropping one event there is room for the new one.
func offer(ch chan model.ProgressEvent, ev model.ProgressEvent) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}
