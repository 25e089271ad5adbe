package extractor

import (
	"os/exec"
	"sync"
)

// registry tracks live extractor processes by OS pid so that cancellation
// from another goroutine can reach a running fetch. Entries are removed on
// both the success and failure paths of Execute.
type registry struct {
	mu    sync.Mutex
	procs map[int]*exec.Cmd
}

func newRegistry() *registry {
	return &registry{procs: make(map[int]*exec.Cmd)}
}

func (r *registry) add(pid int, cmd *exec.Cmd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[pid] = cmd
}

func (r *registry) remove(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, pid)
}

func (r *registry) get(pid int) (*exec.Cmd, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmd, ok := r.procs[pid]
	return cmd, ok
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}
