package contact

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"sms-console/internal/model"
	"sms-console/internal/phone"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	store  *Store
	phones phone.Pattern
	logger *slog.Logger
}

func NewHandler(store *Store, phones phone.Pattern, logger *slog.Logger) *Handler {
	return &Handler{store: store, phones: phones, logger: logger}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/contacts", h.ListContacts)
	g.POST("/contacts", h.CreateContact)
	g.GET("/contacts/:id", h.GetContact)
	g.PUT("/contacts/:id", h.UpdateContact)
	g.DELETE("/contacts/:id", h.DeleteContact)

	g.GET("/groups", h.ListGroups)
	g.POST("/groups", h.CreateGroup)
	g.GET("/groups/:id", h.GetGroup)
	g.DELETE("/groups/:id", h.DeleteGroup)
	g.POST("/groups/:id/members/:contactID", h.AddMember)
	g.DELETE("/groups/:id/members/:contactID", h.RemoveMember)
}

func (h *Handler) fail(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, "already exists")
	}
	h.logger.Error(op, "err", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a positive integer")
	}
	return id, nil
}

func (h *Handler) bindContact(c echo.Context) (model.Contact, error) {
	var in model.Contact
	if err := c.Bind(&in); err != nil {
		return model.Contact{}, echo.NewHTTPError(http.StatusBadRequest, "invalid input")
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = h.phones.Normalize(in.Phone)

	problems := map[string]string{}
	if in.Name == "" {
		problems["name"] = "name is required"
	}
	if !h.phones.Match(in.Phone) {
		problems["phone"] = "phone must look like " + h.phones.Example()
	}
	if len(problems) > 0 {
		return model.Contact{}, echo.NewHTTPError(http.StatusBadRequest, problems)
	}
	return in, nil
}

func (h *Handler) ListContacts(c echo.Context) error {
	contacts, err := h.store.ListContacts(c.Request().Context())
	if err != nil {
		return h.fail("list contacts", err)
	}
	return c.JSON(http.StatusOK, contacts)
}

func (h *Handler) CreateContact(c echo.Context) error {
	in, err := h.bindContact(c)
	if err != nil {
		return err
	}
	id, err := h.store.CreateContact(c.Request().Context(), in)
	if err != nil {
		return h.fail("create contact", err)
	}
	in.ID = id
	return c.JSON(http.StatusCreated, in)
}

func (h *Handler) GetContact(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	contact, err := h.store.GetContact(c.Request().Context(), id)
	if err != nil {
		return h.fail("get contact", err)
	}
	return c.JSON(http.StatusOK, contact)
}

func (h *Handler) UpdateContact(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	in, err := h.bindContact(c)
	if err != nil {
		return err
	}
	in.ID = id
	if err := h.store.UpdateContact(c.Request().Context(), in); err != nil {
		return h.fail("update contact", err)
	}
	return c.JSON(http.StatusOK, in)
}

func (h *Handler) DeleteContact(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.store.DeleteContact(c.Request().Context(), id); err != nil {
		return h.fail("delete contact", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListGroups(c echo.Context) error {
	groups, err := h.store.ListGroups(c.Request().Context())
	if err != nil {
		return h.fail("list groups", err)
	}
	return c.JSON(http.StatusOK, groups)
}

func (h *Handler) CreateGroup(c echo.Context) error {
	var in model.Group
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"name": "name is required"})
	}
	id, err := h.store.CreateGroup(c.Request().Context(), in)
	if err != nil {
		return h.fail("create group", err)
	}
	in.ID = id
	in.Members = nil
	return c.JSON(http.StatusCreated, in)
}

func (h *Handler) GetGroup(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	g, err := h.store.GetGroup(c.Request().Context(), id)
	if err != nil {
		return h.fail("get group", err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) DeleteGroup(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.store.DeleteGroup(c.Request().Context(), id); err != nil {
		return h.fail("delete group", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddMember(c echo.Context) error {
	groupID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	contactID, err := pathID(c, "contactID")
	if err != nil {
		return err
	}
	if err := h.store.AddMember(c.Request().Context(), groupID, contactID); err != nil {
		return h.fail("add group member", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RemoveMember(c echo.Context) error {
	groupID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	contactID, err := pathID(c, "contactID")
	if err != nil {
		return err
	}
	if err := h.store.RemoveMember(c.Request().Context(), groupID, contactID); err != nil {
		return h.fail("remove group member", err)
	}
	return c.NoContent(http.StatusNoContent)
}
