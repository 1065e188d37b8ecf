package runctx

import (
	"os"
	"sync"

	"github.com/grailbio/base/log"
)

// Eraser is the deferred-deletion queue spec §9 names as a singleton,
// re-expressed as a small service a RunContext owns and closes
// explicitly rather than a package-global (spec §9's general
// "replace singletons with owned values" guidance). It drains a
// channel of paths to unlink, used for keep_tmp=false cleanup of
// failed-partition temp files (spec §7) without blocking the caller
// that discovered the failure.
type Eraser struct {
	paths  chan string
	wg     sync.WaitGroup
	closed sync.Once
}

// NewEraser starts the background deletion goroutine.
func NewEraser() *Eraser {
	e := &Eraser{paths: make(chan string, 256)}
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *Eraser) run() {
	defer e.wg.Done()
	for path := range e.paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("runctx.Eraser: remove %s: %v", path, err)
		}
	}
}

// Delete queues path for deletion. Non-blocking as long as the
// internal queue has room.
func (e *Eraser) Delete(path string) {
	e.paths <- path
}

// Close stops accepting new paths and waits for the queue to drain.
func (e *Eraser) Close() {
	e.closed.Do(func() { close(e.paths) })
	e.wg.Wait()
}
