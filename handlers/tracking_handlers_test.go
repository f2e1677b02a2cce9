package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsetrack/api/engine"
	"pulsetrack/api/models"
)

type stubVisitorRepo struct {
	upserts   []models.HeartbeatParams
	upsertErr error
	exits     []string
}

func (s *stubVisitorRepo) UpsertHeartbeat(ctx context.Context, p models.HeartbeatParams) (models.HeartbeatResult, error) {
	if s.upsertErr != nil {
		return models.HeartbeatResult{}, s.upsertErr
	}
	s.upserts = append(s.upserts, p)
	return models.HeartbeatResult{Session: &models.VisitorSession{
		VisitorID: p.VisitorID,
		LastSeen:  p.At,
	}, Created: true}, nil
}

func (s *stubVisitorRepo) FinalizeExit(ctx context.Context, visitorID, exitPage string, at time.Time) error {
	s.exits = append(s.exits, visitorID+" "+exitPage)
	return nil
}

type nopAppender struct{}

func (nopAppender) Append(ctx context.Context, a *models.Activity) error { return nil }

type stubStats struct {
	stats *models.VisitorStats
	err   error
}

func (s *stubStats) OnlineStats(ctx context.Context, onlineAfter time.Time) (*models.VisitorStats, error) {
	return s.stats, s.err
}

func trackingRouter(repo *stubVisitorRepo, stats *stubStats) *gin.Engine {
	gin.SetMode(gin.TestMode)
	tracker := engine.NewTracker(repo, nopAppender{}, func() string { return "id-1" })
	h := NewTrackingHandlers(tracker, stats)
	r := gin.New()
	r.POST("/api/tracking/visitors", h.PostVisitor)
	r.GET("/api/tracking/visitors", h.GetVisitors)
	return r
}

func TestPostVisitor_MintsCookieWhenAnonymous(t *testing.T) {
	repo := &stubVisitorRepo{}
	r := trackingRouter(repo, &stubStats{})

	w := postJSON(r, "/api/tracking/visitors", gin.H{
		"currentPage": "/",
		"type":        "pageview",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, repo.upserts, 1)
	assert.NotEmpty(t, repo.upserts[0].VisitorID)
	assert.True(t, repo.upserts[0].IsPageView)

	// The minted id comes back as a long-lived cookie.
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "visitor_id", cookies[0].Name)
	assert.Equal(t, repo.upserts[0].VisitorID, cookies[0].Value)
}

func TestPostVisitor_BodyIDWins(t *testing.T) {
	repo := &stubVisitorRepo{}
	r := trackingRouter(repo, &stubStats{})

	w := postJSON(r, "/api/tracking/visitors", gin.H{
		"visitorId":   "v-from-body",
		"currentPage": "/posts",
		"type":        "heartbeat",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, repo.upserts, 1)
	assert.Equal(t, "v-from-body", repo.upserts[0].VisitorID)
	assert.False(t, repo.upserts[0].IsPageView, "plain heartbeats are not pageviews")
	assert.Empty(t, w.Result().Cookies(), "no cookie minted when the client brought an id")
}

func TestPostVisitor_RequiresCurrentPage(t *testing.T) {
	r := trackingRouter(&stubVisitorRepo{}, &stubStats{})
	w := postJSON(r, "/api/tracking/visitors", gin.H{"visitorId": "v1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostVisitor_StorageFailureStillSucceeds(t *testing.T) {
	repo := &stubVisitorRepo{upsertErr: errors.New("postgres down")}
	r := trackingRouter(repo, &stubStats{})

	w := postJSON(r, "/api/tracking/visitors", gin.H{
		"visitorId":   "v1",
		"currentPage": "/",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPostVisitor_ExitFinalizesSession(t *testing.T) {
	repo := &stubVisitorRepo{}
	r := trackingRouter(repo, &stubStats{})

	w := postJSON(r, "/api/tracking/visitors", gin.H{
		"visitorId":   "v1",
		"currentPage": "/posts/go?utm_source=nl",
		"type":        "exit",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, repo.upserts)
	require.Len(t, repo.exits, 1)
	assert.Equal(t, "v1 /posts/go", repo.exits[0], "exit page stored without the query string")
}

func TestGetVisitors(t *testing.T) {
	stats := &stubStats{stats: &models.VisitorStats{Online: 5, Desktop: 3, Mobile: 2}}
	r := trackingRouter(&stubVisitorRepo{}, stats)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tracking/visitors", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"online":5,"desktop":3,"mobile":2,"tablet":0}`, w.Body.String())
}
