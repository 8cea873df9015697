package report

import "sync"

// UnsolvedSample is a run that ended without a schedule
type UnsolvedSample struct {
	RunID        string  `json:"run_id"`
	ExperimentID string  `json:"experiment_id"`
	Status       string  `json:"status"`
	TimeLimit    float64 `json:"time_limit"`
}

// UnsolvedLog keeps the last N runs that produced no schedule
type UnsolvedLog struct {
	samples []UnsolvedSample
	maxSize int
	mu      sync.RWMutex
}

// NewUnsolvedLog creates a log with fixed size
func NewUnsolvedLog(maxSize int) *UnsolvedLog {
	return &UnsolvedLog{
		samples: make([]UnsolvedSample, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record adds r if it has no solution (ring buffer)
func (u *UnsolvedLog) Record(r *Record) {
	if r.Solved() {
		return
	}
	sample := UnsolvedSample{
		RunID:        r.RunID,
		ExperimentID: r.ExperimentID,
		Status:       r.Status,
		TimeLimit:    r.TimeLimit,
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.samples) >= u.maxSize {
		u.samples = u.samples[1:]
	}
	u.samples = append(u.samples, sample)
}

// GetRecent returns up to n samples, newest first
func (u *UnsolvedLog) GetRecent(n int) []UnsolvedSample {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if n <= 0 || n > len(u.samples) {
		n = len(u.samples)
	}
	result := make([]UnsolvedSample, n)
	for i := 0; i < n; i++ {
		result[i] = u.samples[len(u.samples)-1-i]
	}
	return result
}

// Count returns the number of samples held
func (u *UnsolvedLog) Count() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.samples)
}
