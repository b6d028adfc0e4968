package metrics

import (
	"strings"
	"testing"
)

func TestRenderIncludesLabelledCounters(t *testing.T) {
	IncGenerationStarted("score")
	IncGenerationFailed("score", "upstream_timeout")
	ObserveUpstreamDurationMs(120)

	out := Render()
	for _, want := range []string{
		`generation_started_total{task="score"}`,
		`generation_failed_total{kind="upstream_timeout",task="score"}`,
		`upstream_duration_ms_bucket{le="250"}`,
		"upstream_duration_ms_count",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, out)
		}
	}
}

func TestCounterVecKeysAreOrderIndependent(t *testing.T) {
	c := newCounterVec()
	c.Inc(labels{"task": "score", "kind": "x"})
	c.Inc(labels{"kind": "x", "task": "score"})
	if got := c.Value(labels{"task": "score", "kind": "x"}); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
