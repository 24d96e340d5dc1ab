package utils

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/iliyamo/event-booking/internal/model"
)

func rupees(paise int64) string {
	return fmt.Sprintf("INR %d.%02d", paise/100, paise%100)
}

// ReceiptPDF renders a one-page receipt for a paid booking with a signed
// QR code per ticket.
func ReceiptPDF(secret string, d *model.BookingDetail, tickets []model.Ticket) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Booking %d receipt", d.ID), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, "Booking receipt")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	lines := []string{
		fmt.Sprintf("Booking #%d  -  %s / %s", d.ID, d.BookingStatus, d.PaymentStatus),
		fmt.Sprintf("Event: %s", d.EventTitle),
		fmt.Sprintf("Where: %s", d.EventLocation),
		fmt.Sprintf("When: %s to %s", d.EventStartDate, d.EventEndDate),
		fmt.Sprintf("Booked by: %s <%s>", d.UserName, d.UserEmail),
	}
	if d.Payment != nil {
		lines = append(lines, fmt.Sprintf("Paid via %s, transaction %s", d.Payment.UPIApp, d.Payment.TransactionID))
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	for _, h := range []struct {
		w float64
		s string
	}{{70, "Package"}, {35, "Day"}, {20, "Qty"}, {30, "Price"}, {35, "Amount"}} {
		pdf.CellFormat(h.w, 8, h.s, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 11)
	for _, it := range d.Items {
		pdf.CellFormat(70, 8, it.PackageName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 8, it.Date, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 8, fmt.Sprint(it.Qty), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, rupees(it.PriceAtTimeCents), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 8, rupees(it.PriceAtTimeCents*int64(it.Qty)), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(155, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, rupees(d.TotalAmountCents), "1", 0, "R", false, 0, "")
	pdf.Ln(12)

	// Tickets, three QR codes per row.
	const qrSize = 40.0
	pdf.SetFont("Arial", "", 8)
	for i, t := range tickets {
		png, err := TicketQRPNG(secret, t.TicketNumber, 256)
		if err != nil {
			return nil, err
		}
		name := "qr-" + t.TicketNumber
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
		col := i % 3
		if col == 0 && i > 0 {
			pdf.Ln(qrSize + 10)
		}
		x := 10 + float64(col)*(qrSize+25)
		y := pdf.GetY()
		pdf.ImageOptions(name, x, y, qrSize, qrSize, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		pdf.Text(x, y+qrSize+4, t.TicketNumber)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
