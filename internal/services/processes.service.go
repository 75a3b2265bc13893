package services

import (
	"context"
	"sort"
	"sync"

	"aegisnet/internal/models"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessSampler reports the top processes by CPU over the last interval.
// Process handles are kept between calls so CPU is measured per interval
// rather than since process start.
type ProcessSampler struct {
	limit int

	mu    sync.Mutex
	procs map[int32]*process.Process
}

// NewProcessSampler keeps the top limit processes; limit <= 0 means 10
func NewProcessSampler(limit int) *ProcessSampler {
	if limit <= 0 {
		limit = 10
	}
	return &ProcessSampler{limit: limit, procs: make(map[int32]*process.Process)}
}

// Sample returns up to limit processes sorted by CPU descending.
// Pipeline: Collect → Sort → Limit
func (s *ProcessSampler) Sample(ctx context.Context) ([]models.ProcessSample, error) {
	collected, err := s.collect(ctx)
	if err != nil {
		return nil, err
	}
	return limitTo(sortByCPU(collected), s.limit), nil
}

// COLLECT: measure every live process, dropping handles of exited ones
func (s *ProcessSampler) collect(ctx context.Context) ([]models.ProcessSample, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	alive := make(map[int32]*process.Process, len(pids))
	samples := make([]models.ProcessSample, 0, len(pids))
	for _, pid := range pids {
		p, ok := s.procs[pid]
		if !ok {
			p, err = process.NewProcessWithContext(ctx, pid)
			if err != nil {
				continue
			}
		}
		alive[pid] = p

		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		// the first call for a new handle primes the counters and reads 0
		cpuPercent, err := p.PercentWithContext(ctx, 0)
		if err != nil {
			cpuPercent = 0
		}
		samples = append(samples, models.ProcessSample{Name: name, CPU: cpuPercent})
	}
	s.procs = alive
	return samples, nil
}

// SORT: by CPU descending, name breaking ties
func sortByCPU(samples []models.ProcessSample) []models.ProcessSample {
	sorted := make([]models.ProcessSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CPU == sorted[j].CPU {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].CPU > sorted[j].CPU
	})
	return sorted
}

// LIMIT: keep only the top n
func limitTo(samples []models.ProcessSample, n int) []models.ProcessSample {
	if len(samples) > n {
		return samples[:n]
	}
	return samples
}
