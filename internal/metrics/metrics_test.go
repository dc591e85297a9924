package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/sendbtc/internal/currency"
	"github.com/congo-pay/sendbtc/internal/draft"
	"github.com/congo-pay/sendbtc/internal/payments"
)

func TestCollectorCountsTerminalSubmissions(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	start := time.Now()
	ev := payments.Event{
		Draft:        draft.OnChain{Base: draft.Base{ReferenceAmount: currency.Sats(1_000)}, Address: "bc1q..."},
		DispatchedAt: start,
		CompletedAt:  start.Add(time.Second),
		Outcome:      payments.Outcome{Status: payments.StatusSuccess},
	}
	c.OnTerminal(context.Background(), ev)
	c.OnTerminal(context.Background(), ev)
	c.FeeProbeFailed(draft.KindLightning)

	require.Equal(t, 2.0, testutil.ToFloat64(c.submissions.WithLabelValues("onchain", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.probeFailure.WithLabelValues("lightning")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.FeeProbeFailed(draft.KindOnChain)

	app := fiber.New()
	app.Get("/metrics", Handler(reg))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), `sendbtc_fee_probe_failures_total{channel="onchain"} 1`)
}
