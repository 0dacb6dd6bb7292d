package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStoreOp(t *testing.T) {
	before := testutil.ToFloat64(storeOps.WithLabelValues("create_event", "error"))
	RecordStoreOp("create_event", errors.New("boom"))
	RecordStoreOp("create_event", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(storeOps.WithLabelValues("create_event", "error")))
}

func TestRecordSubscriptionRefreshOnlySetsGaugeOnUpdate(t *testing.T) {
	RecordSubscriptionRefresh("school", "updated", 12)
	RecordSubscriptionRefresh("school", "not_modified", 0)
	assert.Equal(t, 12.0, testutil.ToFloat64(subscriptionEvents.WithLabelValues("school")))
}

func TestRecordIndicatorWeek(t *testing.T) {
	RecordIndicatorWeek("u1", "Work", "time", 18, 20)
	assert.Equal(t, 18.0, testutil.ToFloat64(indicatorActual.WithLabelValues("u1", "Work", "time")))
	assert.Equal(t, 20.0, testutil.ToFloat64(indicatorGoal.WithLabelValues("u1", "Work", "time")))

	RecordRollover(time.Time{})
	RecordRollover(time.Unix(1775000000, 0))
	assert.Equal(t, 1775000000.0, testutil.ToFloat64(rolloverTimestamp))
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveRequest(http.MethodGet, "GET /api/events", http.StatusOK, 3*time.Millisecond)

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "keycal_http_requests_total"))
}
