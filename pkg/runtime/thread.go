package runtime

import (
	"sync"

	"go.starlark.net/starlark"
)

// threadContextKey is the thread-local slot carrying the render
// context into starlark calls, so template functions invoked from
// expressions can reach their render state.
const threadContextKey = "weft.render.context"

// ContextFromThread returns the render context attached to an
// evaluating thread, or nil.
func ContextFromThread(thread *starlark.Thread) *Context {
	rc, _ := thread.Local(threadContextKey).(*Context)
	return rc
}

// ThreadPool recycles starlark threads across evaluations. A render
// borrows a thread per expression; pooling keeps the per-interpolation
// cost down.
type ThreadPool struct {
	mu      sync.Mutex
	threads []*starlark.Thread
	maxSize int
}

// defaultPool serves contexts constructed without one.
var defaultPool = NewThreadPool(0)

// NewThreadPool creates a pool keeping at most maxSize idle threads.
func NewThreadPool(maxSize int) *ThreadPool {
	if maxSize <= 0 {
		maxSize = 10 // default pool size
	}
	return &ThreadPool{
		threads: make([]*starlark.Thread, 0, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a thread from the pool or creates a new one.
// The thread name is used for error reporting.
func (p *ThreadPool) Get(name string) *starlark.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) > 0 {
		thread := p.threads[len(p.threads)-1]
		p.threads = p.threads[:len(p.threads)-1]
		thread.Name = name
		return thread
	}

	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, _ string) {
			// No-op for template execution
		},
	}
}

// Put returns a thread to the pool for reuse.
// If the pool is full, the thread is discarded.
func (p *ThreadPool) Put(thread *starlark.Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) < p.maxSize {
		// Clear any state that might leak between uses
		thread.Name = ""
		thread.SetLocal(threadContextKey, nil)
		p.threads = append(p.threads, thread)
	}
}

// Size returns the current number of threads in the pool.
func (p *ThreadPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}

// thread borrows a pool thread with this render context attached.
// Callers must hand it back through release.
func (rc *Context) thread(name string) *starlark.Thread {
	t := rc.pool.Get(name)
	t.SetLocal(threadContextKey, rc)
	return t
}

func (rc *Context) release(t *starlark.Thread) {
	rc.pool.Put(t)
}
