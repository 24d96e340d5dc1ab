package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-booking/internal/model"
	"github.com/iliyamo/event-booking/internal/service"
	"github.com/iliyamo/event-booking/internal/utils"
)

// BookingAPI is the part of service.BookingService the HTTP layer uses.
type BookingAPI interface {
	Create(ctx context.Context, req service.Requester, in service.CreateBookingInput) (*model.BookingDetail, error)
	Cancel(ctx context.Context, req service.Requester, id uint64) error
	Get(ctx context.Context, req service.Requester, id uint64) (*model.BookingDetail, error)
	ListMine(ctx context.Context, req service.Requester) ([]model.BookingDetail, error)
	ConfirmPayment(ctx context.Context, req service.Requester, in service.ConfirmPaymentInput) (*service.PaymentResult, error)
	Tickets(ctx context.Context, req service.Requester, bookingID uint64) ([]model.Ticket, error)
	TicketByNumber(ctx context.Context, req service.Requester, number string) (*model.TicketOwnership, error)
	Receipt(ctx context.Context, req service.Requester, bookingID uint64) (*model.BookingDetail, []model.Ticket, error)
}

// BookingHandler serves booking, payment and ticket endpoints.  Secret
// signs ticket QR payloads.
type BookingHandler struct {
	Bookings BookingAPI
	Secret   string
}

func NewBookingHandler(b BookingAPI, secret string) *BookingHandler {
	if b == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: b, Secret: secret}
}

// createBookingReq accepts either an items array or the single-line form
// {event_id, package_id, qty, date}.
type createBookingReq struct {
	EventID   uint64                `json:"event_id" validate:"required"`
	Items     []service.BookingLine `json:"items"`
	PackageID uint64                `json:"package_id"`
	Qty       int                   `json:"qty"`
	Date      string                `json:"date"`
}

func (r createBookingReq) lines() []service.BookingLine {
	if len(r.Items) > 0 {
		return r.Items
	}
	if r.PackageID == 0 {
		return nil
	}
	return []service.BookingLine{{PackageID: r.PackageID, Qty: r.Qty, Date: strings.TrimSpace(r.Date)}}
}

type confirmPaymentReq struct {
	BookingID     uint64 `json:"booking_id" validate:"required"`
	TransactionID string `json:"transaction_id" validate:"required"`
	UPIApp        string `json:"upi_app" validate:"required"`
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return unauthorized(c)
	}
	var body createBookingReq
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&body); err != nil {
		return badRequest(c, err.Error())
	}
	lines := body.lines()
	if len(lines) == 0 {
		return badRequest(c, "items or package_id is required")
	}
	d, err := h.Bookings.Create(c.Request().Context(), req, service.CreateBookingInput{EventID: body.EventID, Items: lines})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

// Cancel handles DELETE /v1/bookings/:id.  Only the owner may cancel and
// only while the booking is pending.
func (h *BookingHandler) Cancel(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	if err := h.Bookings.Cancel(c.Request().Context(), req, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	d, err := h.Bookings.Get(c.Request().Context(), req, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// ListMine handles GET /v1/bookings/my.
func (h *BookingHandler) ListMine(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return unauthorized(c)
	}
	items, err := h.Bookings.ListMine(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	if items == nil {
		items = []model.BookingDetail{}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items, "total": len(items)})
}

// ConfirmPayment handles POST /v1/bookings/confirm-payment.
func (h *BookingHandler) ConfirmPayment(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return unauthorized(c)
	}
	var body confirmPaymentReq
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	body.TransactionID = strings.TrimSpace(body.TransactionID)
	body.UPIApp = strings.TrimSpace(body.UPIApp)
	if err := c.Validate(&body); err != nil {
		return badRequest(c, err.Error())
	}
	res, err := h.Bookings.ConfirmPayment(c.Request().Context(), req, service.ConfirmPaymentInput{
		BookingID:     body.BookingID,
		TransactionID: body.TransactionID,
		UPIApp:        body.UPIApp,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Tickets handles GET /v1/bookings/:id/tickets.
func (h *BookingHandler) Tickets(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	tickets, err := h.Bookings.Tickets(c.Request().Context(), req, id)
	if err != nil {
		return writeError(c, err)
	}
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": tickets, "total": len(tickets)})
}

// ReceiptPDF handles GET /v1/bookings/:id/receipt.pdf.
func (h *BookingHandler) ReceiptPDF(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	d, tickets, err := h.Bookings.Receipt(c.Request().Context(), req, id)
	if err != nil {
		return writeError(c, err)
	}
	pdf, err := utils.ReceiptPDF(h.Secret, d, tickets)
	if err != nil {
		return writeError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=\"receipt-%d.pdf\"", id))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// TicketQR handles GET /v1/tickets/:number/qr and returns a PNG that door
// staff can verify with the server secret.
func (h *BookingHandler) TicketQR(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return unauthorized(c)
	}
	t, err := h.Bookings.TicketByNumber(c.Request().Context(), req, c.Param("number"))
	if err != nil {
		return writeError(c, err)
	}
	png, err := utils.TicketQRPNG(h.Secret, t.TicketNumber, 256)
	if err != nil {
		return writeError(c, err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

type verifyTicketReq struct {
	Payload string `json:"payload" validate:"required"`
}

// VerifyTicket handles POST /v1/admin/tickets/verify.  It checks a scanned
// QR payload's signature and returns the ticket it names.
func (h *BookingHandler) VerifyTicket(c echo.Context) error {
	req, ok := requester(c)
	if !ok {
		return unauthorized(c)
	}
	var body verifyTicketReq
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&body); err != nil {
		return badRequest(c, err.Error())
	}
	number, valid := utils.VerifyTicketQRPayload(h.Secret, strings.TrimSpace(body.Payload))
	if !valid {
		return c.JSON(http.StatusOK, echo.Map{"valid": false})
	}
	t, err := h.Bookings.TicketByNumber(c.Request().Context(), req, number)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "ticket": t})
}
