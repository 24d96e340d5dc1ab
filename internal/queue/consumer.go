package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/event-booking/internal/logger"
)

// ReceiptFile is the file under the receipt directory that receipts are
// appended to.
const ReceiptFile = "receipts.log"

// StartReceiptConsumer connects to RabbitMQ, declares the booking.confirmed
// queue (durable), and renders a receipt for every message into
// <dir>/receipts.log.  It reconnects with exponential back-off and returns
// only when ctx is cancelled.  Undecodable messages are rejected without
// requeue so the loop never spins on them.
func StartReceiptConsumer(ctx context.Context, url, dir string) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warnf(ctx, "receipt-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, dir)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Warnf(ctx, "receipt-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, dir string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warnf(ctx, "receipt-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(BookingConfirmedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(BookingConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			mctx := logger.WithRequestID(ctx, d.CorrelationId)
			if err := handleMessage(dir, d.Body); err != nil {
				logger.Errorf(mctx, "receipt-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(dir string, body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.BookingID == 0 {
		return errors.New("message without booking_id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, ReceiptFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open receipt file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(RenderReceipt(ev)); err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	return nil
}

// RenderReceipt formats ev as a plain-text receipt terminated by a blank line.
func RenderReceipt(ev BookingConfirmedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Receipt | booking #%d | %s ===\n", ev.BookingID, ev.ConfirmedAt)
	fmt.Fprintf(&b, "To: %s <%s>\n", ev.UserName, ev.UserEmail)
	fmt.Fprintf(&b, "Event: %s (#%d) at %s, %s to %s\n", ev.EventTitle, ev.EventID, ev.EventLocation, ev.StartDate, ev.EndDate)
	for _, l := range ev.Lines {
		fmt.Fprintf(&b, "  %s on %s x%d @ %s = %s\n", l.PackageName, l.Date, l.Qty, FormatRupees(l.PriceCents), FormatRupees(l.PriceCents*int64(l.Qty)))
	}
	fmt.Fprintf(&b, "Total: %s paid via %s (txn %s)\n", FormatRupees(ev.TotalAmountCents), ev.UPIApp, ev.TransactionID)
	if len(ev.Tickets) > 0 {
		fmt.Fprintf(&b, "Tickets: %s\n", strings.Join(ev.Tickets, ", "))
	}
	b.WriteString("\n")
	return b.String()
}

// FormatRupees renders an amount in paise as "INR 1234.50".
func FormatRupees(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	return fmt.Sprintf("INR %s%d.%02d", sign, paise/100, paise%100)
}
