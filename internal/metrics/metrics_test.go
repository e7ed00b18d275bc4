package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	ObserveUpload("csv", ResultOK)
	ObserveNameCheck(ResultTaken)
	ObserveCreate(ResultOK, 20*time.Millisecond)
	ObserveImport(ResultOK)
	ObserveExport("xlsx")
	WizardOpened()
	WizardClosed()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	text := string(body)

	for _, want := range []string{
		`assessx_upload_total{format="csv",result="ok"}`,
		`assessx_name_check_total{result="taken"}`,
		`assessx_template_create_total{result="ok"}`,
		`assessx_template_create_latency_seconds_bucket`,
		`assessx_import_total{result="ok"}`,
		`assessx_export_total{format="xlsx"}`,
		`assessx_wizards_open 0`,
	} {
		require.Contains(t, text, want)
	}
}
