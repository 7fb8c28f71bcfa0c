package api

import (
	"ChainPull/internal/domain/models"
	"ChainPull/internal/usecase"
	xhttp "ChainPull/pkg/http"
	xlogger "ChainPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SnapshotsEchoHandler exposes stored snapshots over HTTP.
type SnapshotsEchoHandler struct {
	logger *xlogger.Logger
	query  *usecase.SnapshotQuery
}

func NewSnapshotsEchoHandler(logger *xlogger.Logger, query *usecase.SnapshotQuery) *SnapshotsEchoHandler {
	return &SnapshotsEchoHandler{logger: logger, query: query}
}

func (h *SnapshotsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/option_chains", h.OptionChains)
	e.GET("/expirations", h.Expirations)
	e.GET("/timestamps", h.Timestamps)
}

func (h *SnapshotsEchoHandler) OptionChains(c echo.Context) error {
	req := &models.OptionChainsRequest{}
	if err := xhttp.Bind(c, req); err != nil {
		return xhttp.Fail(c, err)
	}
	expiration := req.ExpirationDate()
	if expiration == "" {
		return xhttp.Fail(c, xhttp.Invalid("expr", "expr or expiration is required"))
	}

	res, err := h.query.OptionChains(c.Request().Context(), req.Ticker, expiration, req.Timestamp)
	if err != nil {
		h.logger.Error("option chains query error", xlogger.Error(err))
		return xhttp.Fail(c, err)
	}
	return xhttp.OK(c, res)
}

func (h *SnapshotsEchoHandler) Expirations(c echo.Context) error {
	res, err := h.query.Expirations(c.Request().Context())
	if err != nil {
		h.logger.Error("expirations query error", xlogger.Error(err))
		return xhttp.Fail(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=30")
	return xhttp.List(c, res, int64(len(res)))
}

func (h *SnapshotsEchoHandler) Timestamps(c echo.Context) error {
	req := &models.TimestampsRequest{}
	if err := xhttp.Bind(c, req); err != nil {
		return xhttp.Fail(c, err)
	}

	res, err := h.query.Timestamps(c.Request().Context(), req.Expr)
	if err != nil {
		h.logger.Error("timestamps query error", xlogger.Error(err))
		return xhttp.Fail(c, err)
	}
	return xhttp.List(c, res, int64(len(res)))
}
