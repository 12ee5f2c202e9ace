package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"coinwatch/internal/monitor"
	domain "coinwatch/pkg/types"
)

// PricesService defines the engine operations the HTTP layer exposes.
type PricesService interface {
	HourlyPrices(ctx context.Context) ([]domain.HourlyPrice, error)
	SetAlert(ctx context.Context, chain string, target decimal.Decimal, email string) (*domain.Alert, error)
	SwapRate(ctx context.Context, amount decimal.Decimal) (*domain.SwapQuote, error)
}

// PricesHandler handles price, alert, and swap-rate endpoints.
type PricesHandler struct {
	service PricesService
}

// NewPricesHandler creates a new PricesHandler.
func NewPricesHandler(s PricesService) *PricesHandler {
	return &PricesHandler{service: s}
}

// HourlyPriceResponse is one per-hour, per-chain peak price row.
type HourlyPriceResponse struct {
	Hour         time.Time `json:"hour"`
	Chain        string    `json:"chain"`
	HighestPrice float64   `json:"highestPrice" example:"2145.33"`
}

// Hourly handles GET /prices/hourly.
//
// @Summary Hourly peak prices
// @Description Returns per-hour, per-chain peak prices over the trailing 24 hours.
// @Tags prices
// @Produce json
// @Success 200 {array} HourlyPriceResponse
// @Failure 500 {object} ErrorResponse
// @Router /prices/hourly [get]
func (h *PricesHandler) Hourly(c echo.Context) error {
	rows, err := h.service.HourlyPrices(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "querying hourly prices: " + err.Error(),
		})
	}

	resp := make([]HourlyPriceResponse, 0, len(rows))
	for _, r := range rows {
		resp = append(resp, HourlyPriceResponse{
			Hour:         r.Hour,
			Chain:        r.Chain,
			HighestPrice: r.HighestPrice.InexactFloat64(),
		})
	}

	return c.JSON(http.StatusOK, resp)
}

type setAlertRequest struct {
	Chain string  `json:"chain" example:"ethereum"`
	Price float64 `json:"price" example:"2500"`
	Email string  `json:"email" example:"user@example.com"`
}

// AlertResponse is the stored alert registration.
type AlertResponse struct {
	ID          string  `json:"id"`
	Chain       string  `json:"chain"`
	TargetPrice float64 `json:"targetPrice"`
	Email       string  `json:"email"`
}

// SetAlert handles POST /prices/alert.
//
// @Summary Register a price alert
// @Description Registers or updates the alert for (chain, email). Last write wins.
// @Tags prices
// @Accept json
// @Produce json
// @Param alert body setAlertRequest true "Alert to register"
// @Success 201 {object} AlertResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /prices/alert [post]
func (h *PricesHandler) SetAlert(c echo.Context) error {
	var req setAlertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}

	if req.Chain == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "chain is required",
		})
	}
	if req.Price <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "price must be positive",
		})
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "email is not a valid address",
		})
	}

	a, err := h.service.SetAlert(
		c.Request().Context(),
		req.Chain,
		decimal.NewFromFloat(req.Price),
		req.Email,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "registering alert: " + err.Error(),
		})
	}

	return c.JSON(http.StatusCreated, AlertResponse{
		ID:          a.ID,
		Chain:       a.Chain,
		TargetPrice: a.TargetPrice.InexactFloat64(),
		Email:       a.Email,
	})
}

// SwapRateResponse is a swap-rate quote.
type SwapRateResponse struct {
	BTCAmount float64 `json:"btcAmount" example:"0.5"`
	TotalFee  float64 `json:"totalFee" example:"600"`
}

// SwapRate handles GET /prices/swap-rate/:ethAmount.
//
// @Summary Quote an ETH to BTC swap
// @Description Quotes a conversion using live market rates with a fee on the source amount.
// @Tags prices
// @Produce json
// @Param ethAmount path number true "Amount of ETH to convert"
// @Success 200 {object} SwapRateResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /prices/swap-rate/{ethAmount} [get]
func (h *PricesHandler) SwapRate(c echo.Context) error {
	amount, err := decimal.NewFromString(c.Param("ethAmount"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "ethAmount must be a number",
		})
	}
	if amount.IsNegative() {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "ethAmount must not be negative",
		})
	}

	quote, err := h.service.SwapRate(c.Request().Context(), amount)
	if err != nil {
		if errors.Is(err, monitor.ErrMissingRate) {
			return c.JSON(http.StatusBadGateway, map[string]string{
				"error": err.Error(),
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "quoting swap rate: " + err.Error(),
		})
	}

	return c.JSON(http.StatusOK, SwapRateResponse{
		BTCAmount: quote.TargetAmount.InexactFloat64(),
		TotalFee:  quote.TotalFee.InexactFloat64(),
	})
}
