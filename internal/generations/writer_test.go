package generations

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"resume-bridge/internal/answers"
	"resume-bridge/internal/shared/telemetry"
	"resume-bridge/internal/upstream"
)

// flakyRepo fails the answer insert at failAt and counts concurrent inserts.
type flakyRepo struct {
	*MemoryRepo
	failAt   int
	inFlight atomic.Int32
	peak     atomic.Int32
	release  chan struct{}
}

func (r *flakyRepo) CreateAnswer(ctx context.Context, a Answer) error {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if a.Position == r.failAt {
		return errors.New("insert failed")
	}
	return r.MemoryRepo.CreateAnswer(ctx, a)
}

func sampleAnswers(n int) []answers.Answer {
	out := make([]answers.Answer, n)
	for i := range out {
		out[i] = answers.Answer{Question: "Q" + string(rune('A'+i)) + "?", Answer: "answer"}
	}
	return out
}

func TestWriterPersistsParentThenChildren(t *testing.T) {
	repo := NewMemoryRepo()
	w := NewWriter(repo)
	w.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	req, rows, err := w.Persist(context.Background(), Request{UserID: "u1", Task: upstream.TaskInterviewAnswers}, sampleAnswers(3))
	require.NoError(t, err)
	require.NotEmpty(t, req.ID)
	require.Len(t, rows, 3)

	stored, err := repo.ListAnswers(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, a := range stored {
		assert.Equal(t, i, a.Position)
		assert.Equal(t, req.ID, a.RequestID)
	}
}

func TestWriterInsertsChildrenConcurrently(t *testing.T) {
	repo := &flakyRepo{MemoryRepo: NewMemoryRepo(), failAt: -1, release: make(chan struct{})}
	w := NewWriter(repo)

	done := make(chan error, 1)
	go func() {
		_, _, err := w.Persist(context.Background(), Request{UserID: "u1"}, sampleAnswers(4))
		done <- err
	}()

	require.Eventually(t, func() bool { return repo.inFlight.Load() == 4 }, 2*time.Second, 5*time.Millisecond)
	close(repo.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(4), repo.peak.Load())
}

func TestWriterReportsAnyChildFailure(t *testing.T) {
	repo := &flakyRepo{MemoryRepo: NewMemoryRepo(), failAt: 2}
	w := NewWriter(repo)

	_, _, err := w.Persist(context.Background(), Request{UserID: "u1"}, sampleAnswers(4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert failed")
}

func TestWriterEmptyAnswersWarns(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := telemetry.L()
	telemetry.SetLogger(zap.New(core))
	t.Cleanup(func() { telemetry.SetLogger(prev) })

	repo := NewMemoryRepo()
	req, rows, err := NewWriter(repo).Persist(context.Background(), Request{UserID: "u1", Task: upstream.TaskInterviewAnswers}, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)

	warned := logs.FilterMessage("generation.no_answers").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)
}

func TestWriterResultOnlyTasksDoNotWarn(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := telemetry.L()
	telemetry.SetLogger(zap.New(core))
	t.Cleanup(func() { telemetry.SetLogger(prev) })

	repo := NewMemoryRepo()
	for _, task := range []upstream.Task{upstream.TaskScore, upstream.TaskColdEmail} {
		req, rows, err := NewWriter(repo).Persist(context.Background(), Request{UserID: "u1", Task: task}, nil)
		require.NoError(t, err)
		assert.Empty(t, rows)
		_, err = repo.GetByID(context.Background(), req.ID)
		require.NoError(t, err)
	}
	assert.Zero(t, logs.FilterMessage("generation.no_answers").Len())
}

func TestWriterParentFailureSkipsChildren(t *testing.T) {
	repo := &failingParentRepo{MemoryRepo: NewMemoryRepo()}
	_, _, err := NewWriter(repo).Persist(context.Background(), Request{UserID: "u1"}, sampleAnswers(2))
	require.Error(t, err)
	assert.Zero(t, repo.answerCalls)
}

type failingParentRepo struct {
	*MemoryRepo
	answerCalls int
}

func (r *failingParentRepo) CreateRequest(context.Context, Request) error {
	return errors.New("db down")
}

func (r *failingParentRepo) CreateAnswer(context.Context, Answer) error {
	r.answerCalls++
	return nil
}
