package rollup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	v1 "github.com/sitepulse-io/sitepulse/internal/api/v1"
	"github.com/sitepulse-io/sitepulse/internal/core/storage"
	"github.com/sitepulse-io/sitepulse/internal/core/storage/memory"
)

func newTestRouter(t *testing.T) (*gin.Engine, *memory.EventStore, *memory.Directory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	events := memory.NewEventStore()
	directory := memory.NewDirectory()
	svc := NewService(events, directory)
	svc.nowFn = func() time.Time { return testNow }

	router := gin.New()
	svc.RegisterRoutes(router)
	return router, events, directory
}

func get(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestViewSeriesHandler_InvalidPeriod(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := get(t, router, "/v1/analytics/views?period=fortnight")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_query")
}

func TestTopContentHandler_InvalidLimit(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := get(t, router, "/v1/analytics/top-content?limit=ten")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = get(t, router, "/v1/analytics/top-content?limit=-3")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOverviewHandler(t *testing.T) {
	router, events, directory := newTestRouter(t)
	directory.SetTotals(storage.Totals{Posts: 3, Users: 2, Comments: 7})

	err := events.SaveVisit(context.Background(), &v1.VisitEvent{
		ID:         "visit-1",
		SessionID:  "a",
		Path:       "/posts/hello",
		OccurredAt: testNow.Add(-time.Hour),
	})
	require.NoError(t, err)

	w := get(t, router, "/v1/analytics/overview")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"totalPosts":3`)
	require.Contains(t, w.Body.String(), `"viewsToday":1`)
	require.Contains(t, w.Body.String(), `"growthPercent":100`)
}

func TestEngagementHandler_EmptyPeriodShape(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := get(t, router, "/v1/analytics/engagement?period=7d")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"commentsOverTime":[]`)
	require.Contains(t, w.Body.String(), `"likesOverTime":[]`)
}
