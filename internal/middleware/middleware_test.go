package middleware_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-assessment/internal/metrics"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
	"github.com/stemsi/exstem-assessment/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRateLimiter_PerInviteToken(t *testing.T) {
	rdb := newRedis(t)
	rl := middleware.NewRateLimiter(rdb, 2, time.Minute, middleware.ByInviteToken, zerolog.Nop())

	r := gin.New()
	r.GET("/a/:token", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(token string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/a/"+token, nil))
		return w.Code
	}

	require.Equal(t, http.StatusOK, do("tok1"))
	require.Equal(t, http.StatusOK, do("tok1"))
	require.Equal(t, http.StatusTooManyRequests, do("tok1"))
	require.Equal(t, http.StatusOK, do("tok2"), "each token has its own budget")
}

func TestRateLimiter_FailsOpenWithoutRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	rl := middleware.NewRateLimiter(rdb, 1, time.Minute, nil, zerolog.Nop())

	r := gin.New()
	r.GET("/", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 3 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestBrotli(t *testing.T) {
	large := strings.Repeat("assessment ", 500)

	tests := map[string]struct {
		body           string
		acceptEncoding string
		wantEncoded    bool
	}{
		"large body compressed":  {body: large, acceptEncoding: "gzip, br", wantEncoded: true},
		"with quality value":     {body: large, acceptEncoding: "br;q=1.0", wantEncoded: true},
		"small body left alone":  {body: "ok", acceptEncoding: "br"},
		"client without brotli":  {body: large, acceptEncoding: "gzip"},
		"no accept-encoding set": {body: large},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			r.Use(middleware.Brotli())
			r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, tc.body) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tc.acceptEncoding)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			if !tc.wantEncoded {
				require.Empty(t, w.Header().Get("Content-Encoding"))
				require.Equal(t, tc.body, w.Body.String())
				return
			}

			require.Equal(t, "br", w.Header().Get("Content-Encoding"))
			decoded, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
			require.NoError(t, err)
			require.Equal(t, tc.body, string(decoded))
		})
	}
}

func TestNoStore(t *testing.T) {
	r := gin.New()
	r.GET("/", middleware.NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestMetrics(t *testing.T) {
	m := metrics.New(nil)
	r := gin.New()
	r.Use(middleware.Metrics(m))
	r.GET("/things/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/things/7", nil))

	require.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "/things/:id", "418")))
}

type oneSession struct {
	hash string
	rec  *model.SessionRecord
}

func (o oneSession) GetByTokenHash(_ context.Context, hash string) (*model.SessionRecord, error) {
	if hash != o.hash {
		return nil, pgx.ErrNoRows
	}
	return o.rec, nil
}

func (o oneSession) GetByID(context.Context, uuid.UUID) (*model.SessionRecord, error) {
	return nil, pgx.ErrNoRows
}

func (o oneSession) MarkStarted(context.Context, uuid.UUID) (time.Time, error) {
	return time.Time{}, nil
}

func (o oneSession) Submit(context.Context, uuid.UUID, []model.StoredAnswer) (*repository.SubmitOutcome, error) {
	return &repository.SubmitOutcome{}, nil
}

func (o oneSession) ListBySession(context.Context, uuid.UUID) ([]model.StoredAnswer, error) {
	return nil, nil
}

func TestResolveInvitation(t *testing.T) {
	rec := &model.SessionRecord{ID: uuid.New(), Status: model.SessionStatusNotStarted}
	store := oneSession{hash: service.HashToken("good"), rec: rec}
	svc := service.NewAssessmentService(store, store, newRedis(t), nil, zerolog.Nop())

	r := gin.New()
	r.GET("/a/:token", middleware.ResolveInvitation(svc, zerolog.Nop()), func(c *gin.Context) {
		got := middleware.GetSession(c)
		require.NotNil(t, got)
		c.String(http.StatusOK, got.ID.String())
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/a/good", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, rec.ID.String(), w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/a/bad", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "INVITATION_NOT_FOUND")
}
