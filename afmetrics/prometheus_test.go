package afmetrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fruitbox12/validator-azero/afmetrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := afmetrics.NewPrometheusMeasure(reg)
	require.NoError(t, err)
	m.UpdateBestBlock(12)

	srv := httptest.NewServer(afmetrics.Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "aleph_best_block 12")
	require.Contains(t, string(body), `aleph_reorgs_bucket{le="5"} 0`)
}
