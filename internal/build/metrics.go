package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks job outcomes and durations
type BuildMetrics struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	Removals         int64
	// Superseded counts pending jobs dropped because a newer job for the same
	// path arrived.
	Superseded      int64
	AverageDuration time.Duration
	TotalDuration   time.Duration
	mutex           sync.RWMutex
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records the outcome of one processed job
func (bm *BuildMetrics) RecordBuild(job Job, duration time.Duration, err error) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds++
	bm.TotalDuration += duration

	if job.Removal {
		bm.Removals++
	}

	if err != nil {
		bm.FailedBuilds++
	} else {
		bm.SuccessfulBuilds++
	}

	bm.AverageDuration = bm.TotalDuration / time.Duration(bm.TotalBuilds)
}

// RecordSuperseded counts a pending job replaced by a newer one.
func (bm *BuildMetrics) RecordSuperseded() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.Superseded++
}

// GetSnapshot returns a snapshot of current metrics
func (bm *BuildMetrics) GetSnapshot() BuildMetrics {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	return BuildMetrics{
		TotalBuilds:      bm.TotalBuilds,
		SuccessfulBuilds: bm.SuccessfulBuilds,
		FailedBuilds:     bm.FailedBuilds,
		Removals:         bm.Removals,
		Superseded:       bm.Superseded,
		AverageDuration:  bm.AverageDuration,
		TotalDuration:    bm.TotalDuration,
	}
}

// GetSuccessRate returns the success rate as a percentage
func (bm *BuildMetrics) GetSuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.TotalBuilds == 0 {
		return 0
	}

	return float64(bm.SuccessfulBuilds) / float64(bm.TotalBuilds) * 100
}
