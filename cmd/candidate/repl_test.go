package main

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/session"
)

var choice = &model.AssessmentQuestion{
	ID:   "q1",
	Type: model.QuestionTypeSingleChoice,
	Options: []model.Option{
		{ID: "go", Text: "Go"},
		{ID: "py", Text: "Python"},
	},
}

func TestParseAnswer(t *testing.T) {
	multi := *choice
	multi.Type = model.QuestionTypeMultipleChoice
	text := &model.AssessmentQuestion{ID: "q2", Type: model.QuestionTypeTextLong}

	tests := map[string]struct {
		q       *model.AssessmentQuestion
		args    []string
		want    model.Response
		wantErr string
	}{
		"option by number":         {q: choice, args: []string{"2"}, want: model.TextResponse("py")},
		"option by id":             {q: choice, args: []string{"go"}, want: model.TextResponse("go")},
		"single needs one":         {q: choice, args: []string{"1", "2"}, wantErr: "exactly one"},
		"unknown option":           {q: choice, args: []string{"3"}, wantErr: "no option"},
		"multiple with commas":     {q: &multi, args: []string{"1,py"}, want: model.MultiResponse("go", "py")},
		"multiple deduplicates":    {q: &multi, args: []string{"1", "go"}, want: model.MultiResponse("go")},
		"text joins the arguments": {q: text, args: []string{"hello", "world"}, want: model.TextResponse("hello world")},
		"missing arguments":        {q: text, wantErr: "usage"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := parseAnswer(tc.q, tc.args)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.True(t, tc.want.Equal(got), "got %v", got)
		})
	}
}

type fakeController struct {
	state   session.State
	index   int
	answers map[string]model.Response
	flagged bool
	started int
}

func (f *fakeController) Start(context.Context) error {
	f.started++
	f.state = session.StateInProgress
	return nil
}

func (f *fakeController) Submit(context.Context) error {
	f.state = session.StateCompleted
	return nil
}

func (f *fakeController) SetAnswer(id string, r model.Response) error {
	f.answers[id] = r
	return nil
}

func (f *fakeController) ClearAnswer(id string) error {
	delete(f.answers, id)
	return nil
}

func (f *fakeController) ToggleFlag(string) (bool, error) {
	f.flagged = !f.flagged
	return f.flagged, nil
}

func (f *fakeController) Next() int { return f.index }
func (f *fakeController) Prev() int { return f.index }

func (f *fakeController) GoTo(i int) error {
	if i != 0 {
		return session.ErrOutOfRange
	}
	return nil
}

func (f *fakeController) Snapshot() session.Snapshot {
	s := session.Snapshot{State: f.state, Title: "Demo", Total: 1, Remaining: 90, Flagged: f.flagged}
	if f.state == session.StateInProgress {
		s.Question = choice
		if r, ok := f.answers[choice.ID]; ok {
			s.Answer = &r
		}
	}
	return s
}

func TestReplSession(t *testing.T) {
	ctrl := &fakeController{state: session.StateReady, answers: map[string]model.Response{}}
	var out bytes.Buffer
	r := &repl{ctrl: ctrl, out: newOutput(&out)}

	input := strings.Join([]string{"answer 1", "start", "answer 2", "show", "flag", "goto 5", "bogus", "submit", "show"}, "\n")
	r.run(context.Background(), bufio.NewScanner(strings.NewReader(input)))

	require.Equal(t, 1, ctrl.started)
	require.Equal(t, model.TextResponse("py"), ctrl.answers["q1"])
	require.True(t, ctrl.flagged)
	require.Equal(t, session.StateCompleted, ctrl.state)

	text := out.String()
	require.Contains(t, text, errNoQuestion.Error(), "answering before start is refused")
	require.Contains(t, text, "[x] 2. Python")
	require.Contains(t, text, "flag on")
	require.Contains(t, text, session.ErrOutOfRange.Error())
	require.Contains(t, text, `unknown command "bogus"`)
	require.Contains(t, text, "Submitted.")
	require.Equal(t, 2, strings.Count(text, "── Question 1/1"), "show after submit is never reached")
}

func TestOutputEvents(t *testing.T) {
	var buf bytes.Buffer
	o := newOutput(&buf)

	o.event(session.Event{Kind: session.EventTick, Remaining: 61})
	o.event(session.Event{Kind: session.EventTick, Remaining: 60})
	o.event(session.Event{Kind: session.EventSaveStatus, SaveStatus: model.SaveStatusSaving})
	o.event(session.Event{Kind: session.EventSaveStatus, SaveStatus: model.SaveStatusError})
	o.event(session.Event{Kind: session.EventNotice, Message: "Time is up."})

	require.Equal(t, "\n! 01:00 left\n  (autosave failed, your answer is kept locally)\n\n! Time is up.\n", buf.String())
}
