package sync

import (
	"sync"

	"github.com/rs/zerolog"
)

type laneTask struct {
	fn func()
	// ran receives true when the task executed, false when it was
	// dropped because the lane shut down first.
	ran chan bool
}

// lane is the sequential processing lane of one conversation: every
// command and inbound realtime event mutates view state through it, one
// unit of work at a time, in arrival order. A panicking unit is recovered
// and logged so it cannot corrupt the next one.
type lane struct {
	tasks     chan laneTask
	quit      chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger

	// mu serializes enqueue against shutdown: do holds the read side
	// while checking closed and sending, close takes the write side
	// before signalling quit. Without this a send could land in the
	// buffer after the drain loop exited, stranding the caller.
	mu     sync.RWMutex
	closed bool
}

func newLane(buffer int, logger zerolog.Logger) *lane {
	l := &lane{
		tasks:  make(chan laneTask, buffer),
		quit:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l
}

func (l *lane) run() {
	for {
		select {
		case task := <-l.tasks:
			l.exec(task)
		case <-l.quit:
			// Release callers whose tasks were queued but never ran.
			for {
				select {
				case task := <-l.tasks:
					task.ran <- false
				default:
					return
				}
			}
		}
	}
}

func (l *lane) exec(task laneTask) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("lane task panicked")
		}
		task.ran <- true
	}()
	task.fn()
}

// do runs fn on the lane and waits for it to complete. It returns
// ErrClosed when the lane shut down before the task could run.
func (l *lane) do(fn func()) error {
	task := laneTask{fn: fn, ran: make(chan bool, 1)}
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrClosed
	}
	// The worker keeps consuming until quit is signalled, and quit
	// cannot be signalled while we hold the read lock, so this send
	// never blocks indefinitely.
	l.tasks <- task
	l.mu.RUnlock()
	if !<-task.ran {
		return ErrClosed
	}
	return nil
}

// close shuts the lane down. Safe to call more than once and safe to call
// while tasks are in flight; every do caller is released, either after
// its task ran or with ErrClosed.
func (l *lane) close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.quit)
	})
}
