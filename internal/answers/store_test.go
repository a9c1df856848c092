package answers_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-assessment/internal/answers"
	"github.com/stemsi/exstem-assessment/internal/model"
)

func TestStore_Capture(t *testing.T) {
	s := answers.NewStore()

	require.True(t, s.Capture("q1", model.TextResponse("a")))
	require.False(t, s.Capture("q1", model.TextResponse("a")), "same value is not a change")
	require.True(t, s.Capture("q1", model.TextResponse("b")))

	got, ok := s.Get("q1")
	require.True(t, ok)
	require.Equal(t, "b", got.Value)

	require.True(t, s.Capture("q1", model.TextResponse("")), "empty response clears")
	_, ok = s.Get("q1")
	require.False(t, ok)
	require.False(t, s.Capture("q2", model.MultiResponse()), "clearing an unanswered question is not a change")
	require.Zero(t, s.Len())
}

func TestStore_LoadAndEntries(t *testing.T) {
	s := answers.NewStore()
	s.Capture("stale", model.TextResponse("x"))

	s.Load([]model.AnswerEntry{
		{QuestionID: "q2", Response: model.MultiResponse("a", "b")},
		{QuestionID: "q1", Response: model.TextResponse("first")},
		{QuestionID: "q1", Response: model.TextResponse("second")},
		{QuestionID: "q3", Response: model.TextResponse("")},
		{QuestionID: "orphan", Response: model.TextResponse("kept")},
	})

	require.Equal(t, 3, s.Len())
	entries := s.Entries([]string{"q1", "q2", "q3"})
	require.Len(t, entries, 3)
	require.Equal(t, "q1", entries[0].QuestionID)
	require.Equal(t, "second", entries[0].Response.Value)
	require.Equal(t, "q2", entries[1].QuestionID)
	require.Equal(t, []string{"a", "b"}, entries[1].Response.Values)
	require.Equal(t, "orphan", entries[2].QuestionID)
}

func TestStore_Flags(t *testing.T) {
	s := answers.NewStore()

	require.True(t, s.ToggleFlag("q2"))
	require.True(t, s.ToggleFlag("q1"))
	require.True(t, s.IsFlagged("q1"))
	require.Equal(t, []string{"q1", "q2"}, s.Flagged())

	require.False(t, s.ToggleFlag("q1"))
	require.False(t, s.IsFlagged("q1"))
	require.Equal(t, []string{"q2"}, s.Flagged())
}
