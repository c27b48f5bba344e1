package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := Registry()
	Init()
	assert.Same(t, first, Registry())
}

func TestObserveCounters(t *testing.T) {
	Init()
	before := testutil.ToFloat64(documentsTotal.WithLabelValues("extra", OutcomeScanned))
	ObserveDocument("extra", OutcomeScanned)
	assert.Equal(t, before+1, testutil.ToFloat64(documentsTotal.WithLabelValues("extra", OutcomeScanned)))

	beforeFindings := testutil.ToFloat64(findingsTotal.WithLabelValues("daily"))
	ObserveFindings("daily", 2)
	ObserveFindings("daily", 0)
	assert.Equal(t, beforeFindings+2, testutil.ToFloat64(findingsTotal.WithLabelValues("daily")))

	ObserveRun(1500*time.Millisecond, 7)
	assert.Equal(t, 1.5, testutil.ToFloat64(runDurationSeconds))
	assert.Equal(t, 7.0, testutil.ToFloat64(historySize))
}

func TestPushSkipsWithoutGateway(t *testing.T) {
	require.NoError(t, Push(context.Background(), "", "job"))
}

func TestPushSendsToGateway(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ObserveNotification("email", "sent")
	require.NoError(t, Push(context.Background(), srv.URL, "gazette_test"))
	assert.Equal(t, "/metrics/job/gazette_test", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestPushReportsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	require.Error(t, Push(context.Background(), srv.URL, ""))
}
