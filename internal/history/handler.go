package history

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"sms-console/internal/model"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// List godoc
// @Summary  List bulk send history, newest first
// @Tags     history
// @Produce  json
// @Param    status query string false "Sent | Partially Sent | Failed"
// @Param    limit  query int    false "max records (default 50, max 500)"
// @Success  200 {array} model.SmsHistoryRecord
// @Router   /sms/history [get]
func (h *Handler) List(c echo.Context) error {
	f := Filter{Status: model.HistoryStatus(c.QueryParam("status"))}
	switch f.Status {
	case "", model.StatusSent, model.StatusPartiallySent, model.StatusFailed:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
	}

	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		f.Limit = limit
	}

	records, err := h.store.List(c.Request().Context(), f)
	if err != nil {
		h.logger.Error("list sms history", "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, records)
}

// Get godoc
// @Summary  One history record
// @Tags     history
// @Produce  json
// @Param    id path string true "record id"
// @Success  200 {object} model.SmsHistoryRecord
// @Failure  404
// @Router   /sms/history/{id} [get]
func (h *Handler) Get(c echo.Context) error {
	rec, err := h.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "history record not found")
		}
		h.logger.Error("get sms history", "id", c.Param("id"), "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, rec)
}
