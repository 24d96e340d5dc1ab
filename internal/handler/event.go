package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-booking/internal/model"
	"github.com/iliyamo/event-booking/internal/repository"
	"github.com/iliyamo/event-booking/internal/service"
)

// EventAPI is the part of service.EventService the HTTP layer uses.
type EventAPI interface {
	Create(ctx context.Context, req service.Requester, in model.EventInput) (*model.Event, error)
	Get(ctx context.Context, req *service.Requester, id uint64) (*model.Event, error)
	List(ctx context.Context, q repository.EventQuery) (*service.EventPage, error)
	ListMine(ctx context.Context, req service.Requester) ([]model.Event, error)
	ListPendingReview(ctx context.Context) ([]model.Event, error)
	Update(ctx context.Context, req service.Requester, id uint64, in model.EventInput) (*model.Event, error)
	Approve(ctx context.Context, id uint64) (*model.Event, error)
	ApproveUpdate(ctx context.Context, id uint64) (*model.Event, error)
	RejectUpdate(ctx context.Context, id uint64) (*model.Event, error)
	Delete(ctx context.Context, req service.Requester, id uint64) error
	Availability(ctx context.Context, req *service.Requester, id uint64) ([]service.DayAvailability, error)
}

// EventHandler serves the public catalogue and the organizer endpoints.
type EventHandler struct {
	Events EventAPI
}

func NewEventHandler(e EventAPI) *EventHandler {
	if e == nil {
		panic("nil event service passed to NewEventHandler")
	}
	return &EventHandler{Events: e}
}

// List handles GET /v1/events.
// Query: search (or q), category, from (YYYY-MM-DD), page, page_size.
func (h *EventHandler) List(c echo.Context) error {
	search := strings.TrimSpace(c.QueryParam("search"))
	if search == "" {
		search = strings.TrimSpace(c.QueryParam("q"))
	}
	from := strings.TrimSpace(c.QueryParam("from"))
	if from != "" && !isDate(from) {
		return badRequest(c, "from must be YYYY-MM-DD")
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	ps, _ := strconv.Atoi(c.QueryParam("page_size"))

	res, err := h.Events.List(c.Request().Context(), repository.EventQuery{
		Search:   search,
		Category: strings.TrimSpace(c.QueryParam("category")),
		From:     from,
		Page:     page,
		PageSize: ps,
	})
	if err != nil {
		return writeError(c, err)
	}
	events := res.Events
	if events == nil {
		events = []model.Event{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":      events,
		"total":     res.Total,
		"page":      res.Page,
		"page_size": res.PageSize,
	})
}

// Get handles GET /v1/events/:id.  Pending events are visible to their
// organizer and administrators only.
func (h *EventHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ev, err := h.Events.Get(c.Request().Context(), optionalRequester(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// Availability handles GET /v1/events/:id/availability.
func (h *EventHandler) Availability(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	days, err := h.Events.Availability(c.Request().Context(), optionalRequester(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event_id": id, "days": days})
}

// ListMine handles GET /v1/events/mine.
func (h *EventHandler) ListMine(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return unauthorized(c)
	}
	events, err := h.Events.ListMine(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": events, "total": len(events)})
}

// Create handles POST /v1/events.  New events wait for admin approval.
func (h *EventHandler) Create(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return unauthorized(c)
	}
	var in model.EventInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ev, err := h.Events.Create(c.Request().Context(), req, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// Update handles PUT /v1/events/:id.  Edits to approved events come back
// with edit_permission SUBMITTED and the live fields unchanged.
func (h *EventHandler) Update(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var in model.EventInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ev, err := h.Events.Update(c.Request().Context(), req, id, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// Delete handles DELETE /v1/events/:id.
func (h *EventHandler) Delete(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	if err := h.Events.Delete(c.Request().Context(), req, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func isDate(s string) bool {
	_, err := time.Parse(model.DateLayout, s)
	return err == nil
}
