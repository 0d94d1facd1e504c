package camera

import "sync"

// loop runs posted tasks one at a time, in order, on a single goroutine.
// The queue is unbounded so tasks may post more tasks without blocking.
type loop struct {
	mu      sync.Mutex
	tasks   []func()
	closing bool
	wake    chan struct{}
	done    chan struct{}
}

func newLoop() *loop {
	return &loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// post queues task. It returns false once the loop is shutting down.
func (l *loop) post(task func()) bool {
	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()
	l.signal()
	return true
}

func (l *loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// run executes tasks until shutdown has been requested and the queue is empty.
func (l *loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			closing := l.closing
			l.mu.Unlock()
			if closing {
				return
			}
			<-l.wake
			continue
		}
		task := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		l.mu.Unlock()
		task()
	}
}

// close queues final as the last task and refuses further posts.
func (l *loop) close(final func()) {
	l.mu.Lock()
	if !l.closing {
		l.tasks = append(l.tasks, final)
		l.closing = true
	}
	l.mu.Unlock()
	l.signal()
}

// wait blocks until run has drained the queue after close.
func (l *loop) wait() {
	<-l.done
}

// shutdown closes the loop and waits for it to drain. run must have been
// started. It must not be called from a task.
func (l *loop) shutdown(final func()) {
	l.close(final)
	l.wait()
}
