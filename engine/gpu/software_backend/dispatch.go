package software_backend

import (
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

const (
	// maxChunks caps the number of tasks a single dispatch is split into.
	maxChunks = 256
	// minParallelInvocations is the grid size below which a dispatch runs inline.
	minParallelInvocations = 256
)

// run executes a kernel over every id of grid and returns once all invocations have finished.
// A panic raised by any invocation is re-raised on the calling goroutine after the join.
func (d *device) run(prog *softwareProgram, io *KernelIO, grid [3]uint32) {
	total := uint64(grid[0]) * uint64(grid[1]) * uint64(grid[2])
	if total == 0 {
		return
	}
	invoke := prog.kernel.Setup(io)

	gid := func(i uint64) [3]uint32 {
		x := i % uint64(grid[0])
		y := (i / uint64(grid[0])) % uint64(grid[1])
		z := i / (uint64(grid[0]) * uint64(grid[1]))
		return [3]uint32{uint32(x), uint32(y), uint32(z)}
	}

	if prog.kernel.Serial || d.workers <= 1 || total < minParallelInvocations {
		for i := range total {
			invoke(gid(i))
		}
		return
	}

	chunks := min(uint64(d.workers*4), maxChunks, total)
	size := (total + chunks - 1) / chunks

	// A WaitGroup provides the per-dispatch barrier; pool.Wait() blocks until workers idle-exit,
	// which is unsuitable for back-to-back dispatches.
	var wg sync.WaitGroup
	var failOnce sync.Once
	var failure any
	for c := range chunks {
		start := c * size
		end := min(start+size, total)
		if start >= end {
			break
		}
		wg.Add(1)
		d.pool.SubmitTask(worker.Task{
			ID: int(c),
			Do: func() (any, error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						failOnce.Do(func() { failure = r })
					}
				}()
				for i := start; i < end; i++ {
					invoke(gid(i))
				}
				return nil, nil
			},
		})
	}
	wg.Wait()

	if failure != nil {
		panic(failure)
	}
}
