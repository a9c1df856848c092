package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-assessment/internal/metrics"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.AnswersSaved.Inc()
	m.Submissions.WithLabelValues("completed").Inc()
	m.Submissions.WithLabelValues("completed").Inc()

	require.Equal(t, 1.0, testutil.ToFloat64(m.AnswersSaved))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Submissions.WithLabelValues("completed")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "assessment_answers_saved_total")
	require.Contains(t, names, "assessment_submissions_total")
}

func TestNew_NilRegistererStaysUnregistered(t *testing.T) {
	require.NotPanics(t, func() {
		metrics.New(nil)
		metrics.New(nil)
	})
}
