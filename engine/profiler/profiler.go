package profiler

import (
	"runtime"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Stats is one interval's worth of frame and memory statistics.
type Stats struct {
	FPS         float64
	Steps       int64
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	SysMB       float64
}

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Outputs stats to the logger at a configurable interval. Frame and step totals are
// atomics so they can be read from other goroutines, e.g. a metrics scrape.
type Profiler struct {
	logger  *zap.Logger
	onStats func(Stats)
	now     func() time.Time

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	lastSteps      int64

	totalFrames atomic.Int64
	totalSteps  atomic.Int64
	lastFPS     atomic.Float64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - logger: the logger stats are written to, nil for none
//   - onStats: called with every interval's stats, may be nil
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(logger *zap.Logger, onStats func(Stats)) *Profiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Profiler{
		logger:         logger,
		onStats:        onStats,
		now:            time.Now,
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// AddSteps records simulation steps run since the last call.
func (p *Profiler) AddSteps(n int) {
	p.totalSteps.Add(int64(n))
}

// Frames returns the number of frames ticked since creation.
func (p *Profiler) Frames() int64 {
	return p.totalFrames.Load()
}

// FPS returns the frame rate of the last completed interval.
func (p *Profiler) FPS() float64 {
	return p.lastFPS.Load()
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, steps, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	p.totalFrames.Inc()
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	s := Stats{FPS: float64(p.frameCount) / elapsed.Seconds()}

	runtime.ReadMemStats(&p.memStats)
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	s.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	s.GCCount = p.memStats.NumGC
	if s.GCCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		s.LastPauseUs = p.memStats.PauseNs[(s.GCCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if s.GCCount-startIdx > 256 {
			startIdx = s.GCCount - 256
		}
		for i := startIdx; i < s.GCCount; i++ {
			s.MaxPauseUs = max(s.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	steps := p.totalSteps.Load()
	s.Steps = steps - p.lastSteps

	p.logger.Info("profiler",
		zap.Float64("fps", s.FPS),
		zap.Int64("steps", s.Steps),
		zap.Float64("heap_mb", s.HeapMB),
		zap.Float64("alloc_rate_mb", s.AllocRateMB),
		zap.Uint32("gc", s.GCCount),
		zap.Uint64("gc_last_pause_us", s.LastPauseUs),
		zap.Uint64("gc_max_pause_us", s.MaxPauseUs),
		zap.Float64("sys_mb", s.SysMB))
	p.lastFPS.Store(s.FPS)
	if p.onStats != nil {
		p.onStats(s)
	}

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.lastSteps = steps
	return true
}
