package sms

import (
	"errors"
	"log/slog"
	"net/http"

	"sms-console/internal/model"
	"sms-console/internal/phone"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	dispatcher *Dispatcher
	phones     phone.Pattern
	logger     *slog.Logger
}

func NewHandler(d *Dispatcher, phones phone.Pattern, logger *slog.Logger) *Handler {
	return &Handler{dispatcher: d, phones: phones, logger: logger}
}

// SendBulk godoc
// @Summary      Send one message to many recipients
// @Tags         sms
// @Accept       x-www-form-urlencoded,json
// @Produce      json
// @Param        senderId    formData  string    true  "Sender ID (max 11 characters)"
// @Param        message     formData  string    true  "Message (max 160 characters)"
// @Param        recipients  formData  []string  true  "Recipient numbers" collectionFormat(multi)
// @Success      200  {object}  model.DispatchResult
// @Failure      400  {object}  map[string]string
// @Router       /sms/bulk [post]
func (h *Handler) SendBulk(c echo.Context) error {
	var in model.BulkSendRequest
	if err := c.Bind(&in); err != nil {
		h.logger.Warn("invalid bulk sms input", "err", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
	}

	req, err := Validate(in, h.phones)
	var invalid ValidationErrors
	if errors.As(err, &invalid) {
		return echo.NewHTTPError(http.StatusBadRequest, invalid)
	}

	result := h.dispatcher.Dispatch(c.Request().Context(), req)
	return c.JSON(http.StatusOK, result)
}
