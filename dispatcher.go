package mqtt3

import "sync"

// Executor runs application callbacks. Tasks submitted from one connection
// must run in submission order.
type Executor interface {
	Execute(task func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(task func())

// Execute calls f(task).
func (f ExecutorFunc) Execute(task func()) { f(task) }

// dispatcher is the default Executor: an unbounded FIFO drained by one
// goroutine, so slow callbacks never hold up the decode goroutine.
type dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  ring[func()]
	closed bool
	done   chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// Execute queues task. Tasks submitted after Close are dropped.
func (d *dispatcher) Execute(task func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.queue.push(task)
	d.cond.Signal()
}

// Close stops accepting tasks; queued tasks still run before Done closes.
func (d *dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
}

// Done is closed after the last queued task returned.
func (d *dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *dispatcher) run() {
	defer close(d.done)

	task := make([]func(), 1)
	for {
		d.mu.Lock()
		for d.queue.Len() == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.queue.pop(task) == 0 {
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()

		task[0]()
		task[0] = nil
	}
}
