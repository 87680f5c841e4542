package credential

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"sms-console/internal/model"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	loader *Loader
	logger *slog.Logger
}

func NewHandler(loader *Loader, logger *slog.Logger) *Handler {
	return &Handler{loader: loader, logger: logger}
}

type settingsResponse struct {
	Configured bool   `json:"configured"`
	ClientID   string `json:"clientId,omitempty"`
}

// GetSettings godoc
// @Summary  Gateway credential status
// @Tags     settings
// @Produce  json
// @Success  200 {object} settingsResponse
// @Router   /settings/sms-api [get]
func (h *Handler) GetSettings(c echo.Context) error {
	creds, err := h.loader.Load(c.Request().Context())
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return c.JSON(http.StatusOK, settingsResponse{Configured: false})
		}
		h.logger.Error("load gateway credentials", "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, settingsResponse{Configured: true, ClientID: creds.ClientID})
}

// PutSettings godoc
// @Summary  Store gateway credentials
// @Tags     settings
// @Accept   json
// @Produce  json
// @Param    body body model.GatewayCredentials true "credentials"
// @Success  200 {object} settingsResponse
// @Router   /settings/sms-api [put]
func (h *Handler) PutSettings(c echo.Context) error {
	var creds model.GatewayCredentials
	if err := c.Bind(&creds); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
	}
	creds.ClientID = strings.TrimSpace(creds.ClientID)
	creds.ClientSecret = strings.TrimSpace(creds.ClientSecret)
	if !creds.Complete() {
		return echo.NewHTTPError(http.StatusBadRequest, "clientId and clientSecret are required")
	}

	if err := h.loader.Save(c.Request().Context(), creds); err != nil {
		h.logger.Error("save gateway credentials", "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	h.logger.Info("gateway credentials updated", "client_id", creds.ClientID)
	return c.JSON(http.StatusOK, settingsResponse{Configured: true, ClientID: creds.ClientID})
}
