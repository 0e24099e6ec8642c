package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	"SignalBot/internal/service/ratelimit"
	"SignalBot/internal/service/stake"
	"SignalBot/internal/usecase"
	xhttp "SignalBot/pkg/http"
	xlogger "SignalBot/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// SignalUseCase is the part of the signal service the HTTP layer drives.
type SignalUseCase interface {
	Scan(ctx context.Context, class models.SignalClass, force bool) (usecase.ScanResult, error)
	Pick(ctx context.Context, p usecase.PickParams) (*models.Delivery, error)
	ReportOutcome(ctx context.Context, o models.Outcome) error
	History(ctx context.Context, instrument string, limit int) ([]domrepo.StoredSignal, domrepo.WinStats, error)
}

type HandlerOption func(*SignalsEchoHandler)

// WithPickRateLimit bounds picks per consumer. Zero capacity disables it.
func WithPickRateLimit(capacity, refillPerSec float64) HandlerOption {
	return func(h *SignalsEchoHandler) {
		h.pickCapacity, h.pickRefill = capacity, refillPerSec
	}
}

func WithStakeRegistry(r *stake.Registry) HandlerOption {
	return func(h *SignalsEchoHandler) {
		if r != nil {
			h.stakes = r
		}
	}
}

// SignalsEchoHandler exposes scanning, picking and settlement over HTTP.
type SignalsEchoHandler struct {
	logger *xlogger.Logger
	svc    SignalUseCase
	stakes *stake.Registry

	limiter      *ratelimit.Limiter
	pickCapacity float64
	pickRefill   float64
}

func NewSignalsEchoHandler(logger *xlogger.Logger, svc SignalUseCase, opts ...HandlerOption) *SignalsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &SignalsEchoHandler{
		logger:       logger,
		svc:          svc,
		stakes:       stake.NewRegistry(stake.DefaultConfig()),
		limiter:      ratelimit.New(),
		pickCapacity: 5,
		pickRefill:   0.2,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals/scan", h.Scan)
	g.POST("/signals/pick", h.Pick)
	g.POST("/signals/outcome", h.Outcome)
	g.GET("/signals/history", h.History)
	g.GET("/expiration", h.Expiration)
	g.GET("/stake/next", h.NextStake)
}

func (h *SignalsEchoHandler) Scan(c echo.Context) error {
	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.svc.Scan(c.Request().Context(), models.SignalClass(req.Class), req.Force)
	if err != nil {
		return h.fail(c, "scan", err)
	}
	if res.Cached {
		c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=30")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) Pick(c echo.Context) error {
	req := &models.PickRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.pickCapacity > 0 && req.Consumer != "" &&
		!h.limiter.Allow("pick:"+req.Consumer, h.pickCapacity, h.pickRefill) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many picks, try again shortly"))
	}

	d, err := h.svc.Pick(c.Request().Context(), usecase.PickParams{
		Class:     models.SignalClass(req.Class),
		Consumer:  req.Consumer,
		Priority:  req.Priority,
		Force:     req.Force,
		Enrich:    req.Enrich,
		Notify:    req.Notify,
		ChatID:    req.ChatID,
		Positions: req.Positions,
	})
	if err != nil {
		return h.fail(c, "pick", err)
	}
	return xhttp.SuccessResponse(c, d)
}

func (h *SignalsEchoHandler) Outcome(c echo.Context) error {
	req := &models.OutcomeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	o := models.Outcome{
		SignalID:   req.SignalID,
		Instrument: req.Instrument,
		Class:      models.SignalClass(req.Class),
		Won:        *req.Won,
	}
	if req.SettledAt != "" {
		t, err := time.Parse(time.RFC3339, req.SettledAt)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("settled_at must be RFC3339").WithError(err))
		}
		o.SettledAt = t
	}
	if err := h.svc.ReportOutcome(c.Request().Context(), o); err != nil {
		return h.fail(c, "outcome", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"accepted": true})
}

// HistoryResponse is the history listing plus aggregate win rate.
type HistoryResponse struct {
	Rows  []domrepo.StoredSignal `json:"rows"`
	Stats domrepo.WinStats       `json:"stats"`
}

func (h *SignalsEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, stats, err := h.svc.History(c.Request().Context(), req.Instrument, req.Limit)
	if err != nil {
		return h.fail(c, "history", err)
	}
	if rows == nil {
		rows = []domrepo.StoredSignal{}
	}
	return xhttp.SuccessResponse(c, HistoryResponse{Rows: rows, Stats: stats})
}

func (h *SignalsEchoHandler) Expiration(c echo.Context) error {
	req := &models.ExpirationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"timeframe": req.TF,
		"label":     domrepo.ExpirationLabel(req.TF),
		"minutes":   domrepo.NormalizeTimeframe(req.TF).ExpirationMinutes(),
	})
}

// StakeResponse is the next stake under a strategy.
type StakeResponse struct {
	Strategy  string          `json:"strategy"`
	Stake     decimal.Decimal `json:"stake"`
	Requested string          `json:"requested,omitempty"`
}

func (h *SignalsEchoHandler) NextStake(c echo.Context) error {
	req := &models.StakeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	strategy, err := h.stakes.Get(req.Strategy)
	resp := StakeResponse{Strategy: strategy.Name()}
	if err != nil {
		h.logger.Warn("unknown stake strategy, using default", xlogger.String("strategy", req.Strategy))
		resp.Requested = req.Strategy
	}

	step := stake.Step{
		Balance: decimal.NewFromFloat(req.Balance),
		Current: decimal.NewFromFloat(req.Current),
		Base:    decimal.NewFromFloat(req.Base),
	}
	if c.QueryParam("won") != "" {
		won := req.Won
		step.Won = &won
	}
	resp.Stake = stake.Next(strategy, step)
	return xhttp.SuccessResponse(c, resp)
}

func (h *SignalsEchoHandler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, usecase.ErrUnknownClass):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	case errors.Is(err, usecase.ErrNoCandidate):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	case errors.Is(err, usecase.ErrHistoryUnavailable):
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError(err.Error()))
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_TIMEOUT", "", "request timed out", http.StatusGatewayTimeout))
	}
	h.logger.Error(op+" usecase error", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}
