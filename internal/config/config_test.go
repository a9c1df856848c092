package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "AUTOSAVE_DELAY_MS", "SUBMIT_RETRIES", "ALLOWED_ORIGINS", "HTTP_TIMEOUT_SECONDS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	require.Equal(t, "8080", cfg.ServerPort)
	require.Equal(t, time.Second, cfg.AutosaveDelay)
	require.Equal(t, 3, cfg.SubmitRetries)
	require.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	require.Nil(t, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("AUTOSAVE_DELAY_MS", "250")
	t.Setenv("SUBMIT_RETRIES", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()
	require.Equal(t, "9000", cfg.ServerPort)
	require.Equal(t, 250*time.Millisecond, cfg.AutosaveDelay)
	require.Equal(t, 3, cfg.SubmitRetries, "unparsable values fall back")
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestKeys(t *testing.T) {
	require.Equal(t, "assessment:s1:answers", CacheKey.SessionAnswersKey("s1"))
	require.Equal(t, "assessment:s1:events", CacheKey.SessionEventsChannel("s1"))
	require.Equal(t, "ratelimit:token:abc:42", CacheKey.RateLimitKey("token:abc", 42))
	require.Equal(t, "persist_answers_queue", WorkerKey.PersistAnswersQueue)
}
