package payments

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/sendbtc/internal/auth"
)

type stubDirectory map[string]bool

func (d stubDirectory) UsernameAvailable(_ context.Context, username string) (bool, error) {
	taken := d[username]
	return !taken, nil
}

func setupHandlerApp(t *testing.T) (*fiber.App, *serviceFixture) {
	t.Helper()
	f := newServiceFixture(t)
	return handlerApp(f, 0), f
}

func handlerApp(f *serviceFixture, submitWait time.Duration) *fiber.App {
	h := NewHandler(f.svc, &chaincfg.MainNetParams, stubDirectory{"satoshi_fan": true}, submitWait)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.LocalAccountID, "acct-1")
		return c.Next()
	})
	app.Post("/payments", h.Prepare)
	app.Get("/payments", h.History)
	app.Get("/payments/:id", h.Get)
	app.Post("/payments/:id/submit", h.Submit)
	app.Get("/recipients/:handle", h.Recipient)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestHandlerPrepareAndSubmit(t *testing.T) {
	app, _ := setupHandlerApp(t)

	status, quote := doJSON(t, app, fiber.MethodPost, "/payments",
		`{"type":"lightning","invoice":"lnbc100u1p3xyzexampleinvoice","amount":10000}`)
	require.Equal(t, fiber.StatusCreated, status)
	require.Equal(t, "idle", quote["state"])
	require.EqualValues(t, 10500, quote["total_sats"])
	id, _ := quote["id"].(string)
	require.NotEmpty(t, id)

	status, quote = doJSON(t, app, fiber.MethodPost, "/payments/"+id+"/submit", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "success", quote["state"])

	status, _ = doJSON(t, app, fiber.MethodPost, "/payments/"+id+"/submit", "")
	require.Equal(t, fiber.StatusConflict, status)

	status, quote = doJSON(t, app, fiber.MethodGet, "/payments/"+id, "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "success", quote["state"])

	status, history := doJSON(t, app, fiber.MethodGet, "/payments?limit=5", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, history["submissions"], 1)
}

func TestHandlerSubmitAcceptedWhileGatewayIsSlow(t *testing.T) {
	f := newServiceFixture(t)
	f.gateway.entered = make(chan struct{}, 1)
	f.gateway.release = make(chan struct{})
	app := handlerApp(f, 50*time.Millisecond)

	status, quote := doJSON(t, app, fiber.MethodPost, "/payments",
		`{"type":"lightning","invoice":"lnbc100u1p3xyzexampleinvoice","amount":10000}`)
	require.Equal(t, fiber.StatusCreated, status)
	id, _ := quote["id"].(string)

	status, quote = doJSON(t, app, fiber.MethodPost, "/payments/"+id+"/submit", "")
	require.Equal(t, fiber.StatusAccepted, status)
	require.Equal(t, "submitting", quote["state"])

	close(f.gateway.release)
	require.Eventually(t, func() bool {
		status, quote := doJSON(t, app, fiber.MethodGet, "/payments/"+id, "")
		return status == fiber.StatusOK && quote["state"] == "success"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandlerRejectsMalformedDrafts(t *testing.T) {
	app, _ := setupHandlerApp(t)

	cases := map[string]string{
		"unknown type":     `{"type":"carrier_pigeon","amount":1}`,
		"testnet address":  `{"type":"onchain","address":"tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx","amount":1000}`,
		"garbage address":  `{"type":"onchain","address":"not-an-address","amount":1000}`,
		"unknown currency": `{"type":"intraledger","recipient":"satoshi_fan","amount":1,"currency":"DOGE"}`,
		"negative amount":  `{"type":"intraledger","recipient":"satoshi_fan","amount":-5}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			status, _ := doJSON(t, app, fiber.MethodPost, "/payments", body)
			require.Equal(t, fiber.StatusBadRequest, status)
		})
	}
}

func TestHandlerSubmitStatusCodes(t *testing.T) {
	app, _ := setupHandlerApp(t)

	status, quote := doJSON(t, app, fiber.MethodPost, "/payments", `{"type":"intraledger","recipient":"3abc","amount":1000}`)
	require.Equal(t, fiber.StatusCreated, status)
	issue, _ := quote["validation_error"].(map[string]any)
	require.Equal(t, "invalid_recipient", issue["code"])
	status, _ = doJSON(t, app, fiber.MethodPost, "/payments/"+quote["id"].(string)+"/submit", "")
	require.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, quote = doJSON(t, app, fiber.MethodPost, "/payments", `{"type":"intraledger","recipient":"satoshi_fan","amount":25000}`)
	require.Equal(t, fiber.StatusCreated, status)
	require.NotNil(t, quote["advisory"])
	status, _ = doJSON(t, app, fiber.MethodPost, "/payments/"+quote["id"].(string)+"/submit", "")
	require.Equal(t, fiber.StatusConflict, status)

	status, _ = doJSON(t, app, fiber.MethodGet, "/payments/00000000-0000-0000-0000-000000000000", "")
	require.Equal(t, fiber.StatusNotFound, status)
}

func TestHandlerRecipient(t *testing.T) {
	app, _ := setupHandlerApp(t)

	_, body := doJSON(t, app, fiber.MethodGet, "/recipients/satoshi_fan", "")
	require.Equal(t, true, body["valid"])
	require.Equal(t, true, body["exists"])

	_, body = doJSON(t, app, fiber.MethodGet, "/recipients/nobody_here", "")
	require.Equal(t, false, body["exists"])

	_, body = doJSON(t, app, fiber.MethodGet, "/recipients/lnbc1xyz", "")
	require.Equal(t, false, body["valid"])
}
