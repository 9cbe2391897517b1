package main

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

type LatencyStats struct {
	Avg, Min, Max, P50, P95 time.Duration
}

func (om *OperationMetrics) Stats() LatencyStats {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return LatencyStats{}
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	return LatencyStats{
		Avg: sum / time.Duration(len(latencies)),
		Min: latencies[0],
		Max: latencies[len(latencies)-1],
		P50: percentile(latencies, 50),
		P95: percentile(latencies, 95),
	}
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func printOperationReport(w io.Writer, name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	st := om.Stats()

	fmt.Fprintf(w, "%s:\n", name)
	fmt.Fprintf(w, "  Total: %d\n", total)
	fmt.Fprintf(w, "  Success: %d (%.1f%%)\n", success, pct(success, total))
	if conflict > 0 {
		fmt.Fprintf(w, "  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict, total))
	}
	if failed > 0 {
		fmt.Fprintf(w, "  Errors: %d (%.1f%%)\n", failed, pct(failed, total))
	}
	fmt.Fprintf(w, "  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n\n",
		st.Avg.Round(time.Millisecond), st.Min.Round(time.Millisecond), st.Max.Round(time.Millisecond),
		st.P50.Round(time.Millisecond), st.P95.Round(time.Millisecond))
}

func pct(n, total int64) float64 {
	return float64(n) / float64(total) * 100
}
