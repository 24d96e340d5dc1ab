package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-booking/internal/middleware"
	"github.com/iliyamo/event-booking/internal/model"
)

// registerClient mounts booking endpoints.  Creating and cancelling a
// booking is for clients; reads are open to any signed-in user because
// the service lets owners and administrators through.
func registerClient(v1 *echo.Group, d Deps) {
	auth := middleware.JWTAuth(d.JWTSecret)
	client := middleware.RequireRole(model.RoleClient)

	v1.POST("/bookings", d.Bookings.Create, auth, client)
	v1.DELETE("/bookings/:id", d.Bookings.Cancel, auth, client)
	v1.POST("/bookings/confirm-payment", d.Bookings.ConfirmPayment, auth,
		middleware.RequireRole(model.RoleClient, model.RoleAdmin))

	v1.GET("/bookings/my", d.Bookings.ListMine, auth)
	v1.GET("/bookings/:id", d.Bookings.Get, auth)
	v1.GET("/bookings/:id/tickets", d.Bookings.Tickets, auth)
	v1.GET("/bookings/:id/receipt.pdf", d.Bookings.ReceiptPDF, auth)
	v1.GET("/tickets/:number/qr", d.Bookings.TicketQR, auth)
}
