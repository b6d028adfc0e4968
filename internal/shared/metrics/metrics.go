package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	generationStarted   = newCounterVec()
	generationSucceeded = newCounterVec()
	generationFailed    = newCounterVec()
	persistenceFailed   = newCounterVec()

	upstreamDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncGenerationStarted counts a bridge call for task.
func IncGenerationStarted(task string) {
	generationStarted.Inc(labels{"task": task})
}

// IncGenerationSucceeded counts a successful bridge call for task.
func IncGenerationSucceeded(task string) {
	generationSucceeded.Inc(labels{"task": task})
}

// IncGenerationFailed counts a failed bridge call by task and failure kind.
func IncGenerationFailed(task, kind string) {
	generationFailed.Inc(labels{"task": task, "kind": kind})
}

// IncPersistenceFailed counts persistence failures for task.
func IncPersistenceFailed(task string) {
	persistenceFailed.Inc(labels{"task": task})
}

// ObserveUpstreamDurationMs records an upstream call duration in milliseconds.
func ObserveUpstreamDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	upstreamDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounterVec(&buf, "generation_started_total", "Total bridge calls started", generationStarted)
	writeCounterVec(&buf, "generation_succeeded_total", "Total bridge calls that produced a result", generationSucceeded)
	writeCounterVec(&buf, "generation_failed_total", "Total bridge calls that failed, by kind", generationFailed)
	writeCounterVec(&buf, "generation_persistence_failed_total", "Total persistence failures after a successful call", persistenceFailed)
	writeHistogram(&buf, "upstream_duration_ms", "Generation backend call duration in milliseconds", upstreamDuration.Snapshot())
	return buf.String()
}

type labels map[string]string

func (l labels) key() string {
	names := make([]string, 0, len(l))
	for k := range l {
		names = append(names, k)
	}
	sort.Strings(names)
	var b bytes.Buffer
	for i, k := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, l[k])
	}
	return b.String()
}

type counterVec struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newCounterVec() *counterVec {
	return &counterVec{values: make(map[string]uint64)}
}

func (c *counterVec) Inc(l labels) {
	c.mu.Lock()
	c.values[l.key()]++
	c.mu.Unlock()
}

func (c *counterVec) Value(l labels) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[l.key()]
}

func (c *counterVec) snapshot() ([]string, map[string]uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.values))
	keys := make([]string, 0, len(c.values))
	for k, v := range c.values {
		out[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounterVec(buf *bytes.Buffer, name, help string, c *counterVec) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys, values := c.snapshot()
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s} %d\n", name, k, values[k])
	}
}

// Observe already records cumulative bucket counts.
func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	for i, bound := range snap.buckets {
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), snap.counts[i])
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMillis returns the milliseconds elapsed since start.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
