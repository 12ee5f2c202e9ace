package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinwatch/internal/api/handlers"
	"coinwatch/internal/monitor"
	"coinwatch/internal/notify"
	"coinwatch/internal/store"
	domain "coinwatch/pkg/types"
)

// fakeMarket serves prices from a fixed map.
type fakeMarket struct {
	prices map[string]decimal.Decimal
}

func (f *fakeMarket) FetchPrice(_ context.Context, name string) (decimal.Decimal, bool) {
	p, ok := f.prices[name]
	if !ok {
		return decimal.Zero, false
	}
	return p, true
}

// fakeService injects errors into the handler without a real engine.
type fakeService struct {
	hourlyErr error
	alertErr  error
	swapErr   error
}

func (f *fakeService) HourlyPrices(context.Context) ([]domain.HourlyPrice, error) {
	return nil, f.hourlyErr
}

func (f *fakeService) SetAlert(context.Context, string, decimal.Decimal, string) (*domain.Alert, error) {
	return nil, f.alertErr
}

func (f *fakeService) SwapRate(context.Context, decimal.Decimal) (*domain.SwapQuote, error) {
	return nil, f.swapErr
}

func newTestMonitor(t *testing.T, ms store.Store, prices map[string]decimal.Decimal) *monitor.Monitor {
	t.Helper()
	return monitor.NewMonitor(ms, &fakeMarket{prices: prices},
		notify.NewNoOpNotifier(slog.New(slog.NewTextHandler(io.Discard, nil))),
		monitor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		monitor.WithSwapAssets("ethereum", "bitcoin"),
		monitor.WithFeeRate(0.03),
	)
}

func TestHourly(t *testing.T) {
	t.Parallel()

	t.Run("returns aggregated rows", func(t *testing.T) {
		t.Parallel()

		ms := store.NewMemoryStore()
		hour := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Hour)
		for _, price := range []string{"2000", "2150.75"} {
			require.NoError(t, ms.InsertSample(context.Background(), &domain.PriceSample{
				Chain:     "ethereum",
				Price:     decimal.RequireFromString(price),
				Timestamp: hour.Add(10 * time.Minute),
			}))
		}

		h := handlers.NewPricesHandler(newTestMonitor(t, ms, nil))

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/prices/hourly", http.NoBody)
		rec := httptest.NewRecorder()
		require.NoError(t, h.Hourly(e.NewContext(req, rec)))

		assert.Equal(t, http.StatusOK, rec.Code)

		var rows []handlers.HourlyPriceResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "ethereum", rows[0].Chain)
		assert.InDelta(t, 2150.75, rows[0].HighestPrice, 1e-9)
		assert.True(t, rows[0].Hour.Equal(hour))
	})

	t.Run("empty result is an empty array", func(t *testing.T) {
		t.Parallel()

		h := handlers.NewPricesHandler(newTestMonitor(t, store.NewMemoryStore(), nil))

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/prices/hourly", http.NoBody)
		rec := httptest.NewRecorder()
		require.NoError(t, h.Hourly(e.NewContext(req, rec)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()

		h := handlers.NewPricesHandler(&fakeService{hourlyErr: errors.New("boom")})

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/prices/hourly", http.NoBody)
		rec := httptest.NewRecorder()
		require.NoError(t, h.Hourly(e.NewContext(req, rec)))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestSetAlert(t *testing.T) {
	t.Parallel()

	postAlert := func(t *testing.T, h *handlers.PricesHandler, body string) *httptest.ResponseRecorder {
		t.Helper()
		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/prices/alert", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		require.NoError(t, h.SetAlert(e.NewContext(req, rec)))
		return rec
	}

	t.Run("registers a new alert", func(t *testing.T) {
		t.Parallel()

		ms := store.NewMemoryStore()
		h := handlers.NewPricesHandler(newTestMonitor(t, ms, nil))

		rec := postAlert(t, h, `{"chain":"ethereum","price":2500,"email":"user@example.com"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp handlers.AlertResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, "ethereum", resp.Chain)
		assert.InDelta(t, 2500, resp.TargetPrice, 1e-9)
		assert.Equal(t, "user@example.com", resp.Email)

		stored, err := ms.GetAlert(context.Background(), "ethereum", "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, resp.ID, stored.ID)
	})

	t.Run("re-registration overwrites the target", func(t *testing.T) {
		t.Parallel()

		ms := store.NewMemoryStore()
		h := handlers.NewPricesHandler(newTestMonitor(t, ms, nil))

		first := postAlert(t, h, `{"chain":"ethereum","price":2500,"email":"user@example.com"}`)
		assert.Equal(t, http.StatusCreated, first.Code)

		second := postAlert(t, h, `{"chain":"ethereum","price":3000,"email":"user@example.com"}`)
		assert.Equal(t, http.StatusCreated, second.Code)

		stored, err := ms.GetAlert(context.Background(), "ethereum", "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, "3000", stored.TargetPrice.String())
	})

	t.Run("validation failures", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			body string
		}{
			{name: "missing chain", body: `{"price":2500,"email":"user@example.com"}`},
			{name: "zero price", body: `{"chain":"ethereum","price":0,"email":"user@example.com"}`},
			{name: "negative price", body: `{"chain":"ethereum","price":-5,"email":"user@example.com"}`},
			{name: "missing email", body: `{"chain":"ethereum","price":2500}`},
			{name: "malformed email", body: `{"chain":"ethereum","price":2500,"email":"not-an-email"}`},
			{name: "malformed body", body: `{not json`},
		}

		h := handlers.NewPricesHandler(newTestMonitor(t, store.NewMemoryStore(), nil))

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				rec := postAlert(t, h, tt.body)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()

		h := handlers.NewPricesHandler(&fakeService{alertErr: errors.New("boom")})
		rec := postAlert(t, h, `{"chain":"ethereum","price":2500,"email":"user@example.com"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestSwapRate(t *testing.T) {
	t.Parallel()

	getSwap := func(t *testing.T, h *handlers.PricesHandler, amount string) *httptest.ResponseRecorder {
		t.Helper()
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/prices/swap-rate/"+amount, http.NoBody)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/prices/swap-rate/:ethAmount")
		c.SetParamNames("ethAmount")
		c.SetParamValues(amount)
		require.NoError(t, h.SwapRate(c))
		return rec
	}

	t.Run("quotes with live rates", func(t *testing.T) {
		t.Parallel()

		h := handlers.NewPricesHandler(newTestMonitor(t, store.NewMemoryStore(), map[string]decimal.Decimal{
			"ethereum": decimal.RequireFromString("2000"),
			"bitcoin":  decimal.RequireFromString("40000"),
		}))

		rec := getSwap(t, h, "10")
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp handlers.SwapRateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.InDelta(t, 0.5, resp.BTCAmount, 1e-9)
		assert.InDelta(t, 600, resp.TotalFee, 1e-9)
	})

	t.Run("non-numeric amount", func(t *testing.T) {
		t.Parallel()

		h := handlers.NewPricesHandler(newTestMonitor(t, store.NewMemoryStore(), nil))
		rec := getSwap(t, h, "ten")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative amount", func(t *testing.T) {
		t.Parallel()

		h := handlers.NewPricesHandler(newTestMonitor(t, store.NewMemoryStore(), nil))
		rec := getSwap(t, h, "-1")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing live rate", func(t *testing.T) {
		t.Parallel()

		// Provider knows neither asset.
		h := handlers.NewPricesHandler(newTestMonitor(t, store.NewMemoryStore(), nil))
		rec := getSwap(t, h, "10")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "rate unavailable")
	})

	t.Run("unexpected failure", func(t *testing.T) {
		t.Parallel()

		h := handlers.NewPricesHandler(&fakeService{swapErr: errors.New("boom")})
		rec := getSwap(t, h, "10")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
