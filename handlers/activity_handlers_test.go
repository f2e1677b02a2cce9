package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsetrack/api/models"
)

type stubActivitySource struct {
	appended   []models.Activity
	appendErr  error
	queryItems []models.Activity
	lastFilter models.ActivityFilter
}

func (s *stubActivitySource) Append(ctx context.Context, a *models.Activity) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, *a)
	return nil
}

func (s *stubActivitySource) Query(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, error) {
	s.lastFilter = filter
	return s.queryItems, nil
}

func activityRouter(h *ActivityHandlers, authed bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/tracking/activities", h.PostActivity)
	r.GET("/api/tracking/activities", func(c *gin.Context) {
		if authed {
			c.Set("authenticated", true)
		}
		h.GetActivities(c)
	})
	return r
}

func postJSON(r *gin.Engine, target string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestPostActivity_SynthesizesAnonymousName(t *testing.T) {
	src := &stubActivitySource{}
	r := activityRouter(NewActivityHandlers(src), false)

	w := postJSON(r, "/api/tracking/activities", gin.H{
		"type":       models.ActivityReaction,
		"visitorId":  "abcdef123456",
		"targetSlug": "/posts/go",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, src.appended, 1)
	assert.Equal(t, "Visitor-abcdef", src.appended[0].DisplayName)
	assert.True(t, src.appended[0].IsPublic, "isPublic defaults to true")

	var resp struct {
		Activity struct {
			ID          string `json:"id"`
			Type        string `json:"type"`
			DisplayName string `json:"displayName"`
		} `json:"activity"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Activity.ID)
	assert.Equal(t, models.ActivityReaction, resp.Activity.Type)
	assert.Equal(t, "Visitor-abcdef", resp.Activity.DisplayName)
}

func TestPostActivity_ValidatesRequiredFields(t *testing.T) {
	r := activityRouter(NewActivityHandlers(&stubActivitySource{}), false)

	// No visitorId.
	w := postJSON(r, "/api/tracking/activities", gin.H{"type": "reaction"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// No type.
	w = postJSON(r, "/api/tracking/activities", gin.H{"visitorId": "v1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostActivity_AppendFailureStillSucceeds(t *testing.T) {
	src := &stubActivitySource{appendErr: context.DeadlineExceeded}
	r := activityRouter(NewActivityHandlers(src), false)

	w := postJSON(r, "/api/tracking/activities", gin.H{
		"type":      "reaction",
		"visitorId": "v1",
	})
	// Instrumentation must never surface storage failures to the client.
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetActivities_PublicOnlyForAnonymous(t *testing.T) {
	src := &stubActivitySource{}
	r := activityRouter(NewActivityHandlers(src), false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tracking/activities?public=false", nil))

	require.Equal(t, http.StatusOK, w.Code)
	// public=false is ignored without authentication.
	assert.True(t, src.lastFilter.PublicOnly)
}

func TestGetActivities_AuthenticatedCanWiden(t *testing.T) {
	src := &stubActivitySource{}
	r := activityRouter(NewActivityHandlers(src), true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tracking/activities?public=false&types=reaction,comment&limit=10", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, src.lastFilter.PublicOnly)
	assert.Equal(t, []string{"reaction", "comment"}, src.lastFilter.Types)
	assert.Equal(t, 10, src.lastFilter.Limit)
}

func TestGetActivities_RejectsBadParams(t *testing.T) {
	r := activityRouter(NewActivityHandlers(&stubActivitySource{}), false)

	for _, target := range []string{
		"/api/tracking/activities?limit=abc",
		"/api/tracking/activities?limit=0",
		"/api/tracking/activities?since=yesterday",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestGetActivities_FillsTimeAgo(t *testing.T) {
	src := &stubActivitySource{queryItems: []models.Activity{
		{ID: "a1", Type: "reaction", CreatedAt: time.Now().Add(-5 * time.Minute)},
	}}
	r := activityRouter(NewActivityHandlers(src), false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tracking/activities", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Activities []models.Activity `json:"activities"`
		Count      int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "5 minutes ago", resp.Activities[0].TimeAgo)
}
