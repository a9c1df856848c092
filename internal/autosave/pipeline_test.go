package autosave_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-assessment/internal/autosave"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const (
	testDelay    = 20 * time.Millisecond
	testSavedFor = 40 * time.Millisecond
	waitFor      = 2 * time.Second
	pollEvery    = 5 * time.Millisecond
)

type call struct {
	questionID string
	value      model.Response
}

type recordingSaver struct {
	mu    sync.Mutex
	calls []call
	fail  func(n int) error
	gate  chan struct{}
}

func (s *recordingSaver) Save(ctx context.Context, questionID string, r model.Response) error {
	s.mu.Lock()
	s.calls = append(s.calls, call{questionID: questionID, value: r})
	n := len(s.calls)
	gate := s.gate
	fail := s.fail
	s.mu.Unlock()

	if gate != nil && n == 1 {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail != nil {
		return fail(n)
	}
	return nil
}

func (s *recordingSaver) Calls() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

func newPipeline(t *testing.T, saver autosave.Saver, opts ...autosave.Option) *autosave.Pipeline {
	t.Helper()
	base := []autosave.Option{
		autosave.WithDelay(testDelay),
		autosave.WithSavedFor(testSavedFor),
	}
	p := autosave.New(saver, append(base, opts...)...)
	p.Enable()
	t.Cleanup(p.Stop)
	return p
}

func TestPipeline_CoalescesEditsToSameQuestion(t *testing.T) {
	saver := &recordingSaver{}
	p := newPipeline(t, saver)

	for _, v := range []string{"a", "ab", "abc", "abcd", "abcde"} {
		require.True(t, p.Schedule("q1", model.TextResponse(v)))
	}

	require.Eventually(t, func() bool { return len(saver.Calls()) == 1 }, waitFor, pollEvery)
	time.Sleep(3 * testDelay)

	calls := saver.Calls()
	require.Len(t, calls, 1, "rapid edits must produce exactly one save")
	require.Equal(t, "q1", calls[0].questionID)
	require.Equal(t, "abcde", calls[0].value.Value)
}

func TestPipeline_QuestionsAreIndependent(t *testing.T) {
	saver := &recordingSaver{}
	p := newPipeline(t, saver)

	p.Schedule("q1", model.TextResponse("one"))
	p.Schedule("q2", model.MultiResponse("a", "b"))
	p.Schedule("q1", model.TextResponse("uno"))

	require.Eventually(t, func() bool { return len(saver.Calls()) == 2 }, waitFor, pollEvery)

	got := map[string]model.Response{}
	for _, c := range saver.Calls() {
		got[c.questionID] = c.value
	}
	require.Equal(t, "uno", got["q1"].Value)
	require.Equal(t, []string{"a", "b"}, got["q2"].Values)
}

func TestPipeline_StatusLifecycle(t *testing.T) {
	saver := &recordingSaver{}

	var (
		mu      sync.Mutex
		history []model.SaveStatus
	)
	p := newPipeline(t, saver, autosave.OnStatus(func(s model.SaveStatus) {
		mu.Lock()
		history = append(history, s)
		mu.Unlock()
	}))

	require.Equal(t, model.SaveStatusIdle, p.Status())
	p.Schedule("q1", model.TextResponse("x"))
	require.Equal(t, model.SaveStatusSaving, p.Status(), "saving is set synchronously")
	require.Equal(t, 1, p.Pending())

	require.Eventually(t, func() bool { return p.Status() == model.SaveStatusSaved }, waitFor, pollEvery)
	require.Eventually(t, func() bool { return p.Status() == model.SaveStatusIdle }, waitFor, pollEvery)
	require.Zero(t, p.Pending())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []model.SaveStatus{
		model.SaveStatusSaving,
		model.SaveStatusSaved,
		model.SaveStatusIdle,
	}, history)
}

func TestPipeline_ErrorIsStickyUntilNextSuccess(t *testing.T) {
	saver := &recordingSaver{
		fail: func(n int) error {
			if n == 1 {
				return errors.New("network down")
			}
			return nil
		},
	}
	p := newPipeline(t, saver)

	p.Schedule("q1", model.TextResponse("first"))
	require.Eventually(t, func() bool { return p.Status() == model.SaveStatusError }, waitFor, pollEvery)

	time.Sleep(3 * testSavedFor)
	require.Equal(t, model.SaveStatusError, p.Status(), "error must not auto-clear")

	p.Schedule("q1", model.TextResponse("second"))
	require.Equal(t, model.SaveStatusSaving, p.Status())
	require.Eventually(t, func() bool { return p.Status() == model.SaveStatusSaved }, waitFor, pollEvery)

	calls := saver.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, "second", calls[1].value.Value)
}

func TestPipeline_InactiveBeforeEnableAndAfterStop(t *testing.T) {
	saver := &recordingSaver{}
	p := autosave.New(saver, autosave.WithDelay(testDelay))

	require.False(t, p.Schedule("q1", model.TextResponse("early")), "not enabled yet")

	p.Enable()
	require.True(t, p.Schedule("q1", model.TextResponse("pending")))
	p.Stop()
	p.Enable()
	require.False(t, p.Schedule("q1", model.TextResponse("late")))

	time.Sleep(5 * testDelay)
	require.Empty(t, saver.Calls(), "stop cancels pending timers")
	require.Zero(t, p.Pending())
}

func TestPipeline_OneInFlightSavePerQuestion(t *testing.T) {
	gate := make(chan struct{})
	saver := &recordingSaver{gate: gate}
	p := newPipeline(t, saver)

	p.Schedule("q1", model.TextResponse("v1"))
	require.Eventually(t, func() bool { return len(saver.Calls()) == 1 }, waitFor, pollEvery)

	p.Schedule("q1", model.TextResponse("v2"))
	time.Sleep(5 * testDelay)
	require.Len(t, saver.Calls(), 1, "second save waits for the first to return")
	require.Equal(t, model.SaveStatusSaving, p.Status())

	close(gate)
	require.Eventually(t, func() bool { return len(saver.Calls()) == 2 }, waitFor, pollEvery)
	require.Equal(t, "v2", saver.Calls()[1].value.Value)
	require.Eventually(t, func() bool { return p.Status() == model.SaveStatusSaved }, waitFor, pollEvery)
}

func TestSaverFunc(t *testing.T) {
	var got string
	s := autosave.SaverFunc(func(_ context.Context, id string, _ model.Response) error {
		got = id
		return nil
	})
	require.NoError(t, s.Save(context.Background(), "q9", model.TextResponse("x")))
	require.Equal(t, "q9", got)
}
