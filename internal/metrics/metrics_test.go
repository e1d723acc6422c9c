package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func expectCount(t *testing.T, name string, got, want float64) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("GET", "/api/content/v3/read/:id", "200", 0.123)
	RecordHTTPRequest("GET", "/api/content/v3/read/:id", "404", 0.01)

	expectCount(t, "200s", testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/content/v3/read/:id", "200")), 1)
	expectCount(t, "histogram series", float64(testutil.CollectAndCount(HTTPRequestDuration)), 1)
}

func TestCollectorNames(t *testing.T) {
	ErrorsTotal.Reset()
	RecordError("webhook", "delivery_failed")

	expected := `
# HELP sourcing_errors_total Errors by component.
# TYPE sourcing_errors_total counter
sourcing_errors_total{component="webhook",error_type="delivery_failed"} 1
`
	if err := testutil.CollectAndCompare(ErrorsTotal, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestRecordClientCall(t *testing.T) {
	ClientCallsTotal.Reset()

	for _, status := range []string{StatusSuccess, StatusError, StatusSuccess} {
		RecordClientCall("asset.create", status, 0.02)
	}

	expectCount(t, "success", testutil.ToFloat64(ClientCallsTotal.WithLabelValues("asset.create", StatusSuccess)), 2)
	expectCount(t, "error", testutil.ToFloat64(ClientCallsTotal.WithLabelValues("asset.create", StatusError)), 1)
}

func TestRecordTranscriptCommitAndBranches(t *testing.T) {
	TranscriptCommitsTotal.Reset()
	TranscriptBranchesTotal.Reset()

	RecordTranscriptCommit(StatusSuccess, 1.2)
	RecordTranscriptCommit("branch_failed", 0.4)
	RecordTranscriptBranch("upload", StatusSuccess)
	RecordTranscriptBranch("language_only", StatusSuccess)
	RecordTranscriptBranch("upload", StatusSuccess)

	expectCount(t, "commits ok", testutil.ToFloat64(TranscriptCommitsTotal.WithLabelValues(StatusSuccess)), 1)
	expectCount(t, "commits failed", testutil.ToFloat64(TranscriptCommitsTotal.WithLabelValues("branch_failed")), 1)
	expectCount(t, "upload branches", testutil.ToFloat64(TranscriptBranchesTotal.WithLabelValues("upload", StatusSuccess)), 2)
}

func TestRecordStorageAndDatabase(t *testing.T) {
	StorageOperationsTotal.Reset()
	DatabaseOperationsTotal.Reset()

	RecordStorageOperation("presign_put", StatusSuccess, 0.01)
	RecordDatabaseOperation("get_content", StatusSuccess, 0.05)
	RecordDatabaseOperation("update_asset", StatusError, 0.02)

	expectCount(t, "storage", testutil.ToFloat64(StorageOperationsTotal.WithLabelValues("presign_put", StatusSuccess)), 1)
	expectCount(t, "db ok", testutil.ToFloat64(DatabaseOperationsTotal.WithLabelValues("get_content", StatusSuccess)), 1)
	expectCount(t, "db failed", testutil.ToFloat64(DatabaseOperationsTotal.WithLabelValues("update_asset", StatusError)), 1)
}

func TestRecordCacheAccess(t *testing.T) {
	CacheAccessTotal.Reset()

	RecordCacheAccess("content", true)
	RecordCacheAccess("content", true)
	RecordCacheAccess("content", false)

	expectCount(t, "hits", testutil.ToFloat64(CacheAccessTotal.WithLabelValues("content", "hit")), 2)
	expectCount(t, "misses", testutil.ToFloat64(CacheAccessTotal.WithLabelValues("content", "miss")), 1)
}

func TestStatus(t *testing.T) {
	if Status(nil) != StatusSuccess {
		t.Error("nil error should map to success")
	}
	if Status(errors.New("boom")) != StatusError {
		t.Error("non-nil error should map to error")
	}
}

func BenchmarkRecordHTTPRequest(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordHTTPRequest("GET", "/api/content/v3/read/:id", "200", 0.123)
	}
}
