package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-booking/internal/model"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, model.RoleOrganizer, 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 5*time.Second)

	claims, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, model.RoleOrganizer, claims.Role)

	_, err = ParseAccessToken("other", tok.Token)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsExpiredAndForeignAlgorithms(t *testing.T) {
	expired, err := NewAccessToken("s3cret", 1, model.RoleClient, -1)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", expired.Token)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{Role: model.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", raw)
	assert.Error(t, err)
}

func TestRefreshTokenHash(t *testing.T) {
	rt, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.Len(t, HashRefreshRaw(rt.Raw), 64)
	assert.Equal(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("pa55word", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "pa55word"))
	assert.False(t, VerifyPassword(hash, "wrong"))

	assert.False(t, NeedsRehash(hash, 4))
	assert.True(t, NeedsRehash(hash, 5))
	assert.True(t, NeedsRehash("not-a-hash", 4))
}

func TestTicketQRPayload(t *testing.T) {
	payload := TicketQRPayload("k", "TKT-1-2-ABCDEF01-1")
	number, ok := VerifyTicketQRPayload("k", payload)
	assert.True(t, ok)
	assert.Equal(t, "TKT-1-2-ABCDEF01-1", number)

	_, ok = VerifyTicketQRPayload("other", payload)
	assert.False(t, ok)
	_, ok = VerifyTicketQRPayload("k", "TKT-1-2-ABCDEF01-2."+TicketSignature("k", "TKT-1-2-ABCDEF01-1"))
	assert.False(t, ok)

	png, err := TicketQRPNG("k", "TKT-1-2-ABCDEF01-1", 128)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestReceiptPDF(t *testing.T) {
	d := &model.BookingDetail{
		Booking:    model.Booking{ID: 5, TotalAmountCents: 100000, BookingStatus: model.BookingConfirmed, PaymentStatus: model.PaymentPaid},
		EventTitle: "Fest",
		Items:      []model.BookingItem{{PackageName: "Basic", Date: "2025-01-10", Qty: 2, PriceAtTimeCents: 50000}},
		Payment:    &model.Payment{UPIApp: "gpay", TransactionID: "T1"},
	}
	tickets := []model.Ticket{{TicketNumber: "TKT-1-5-AAAAAAAA-1"}, {TicketNumber: "TKT-1-5-BBBBBBBB-2"}}
	out, err := ReceiptPDF("k", d, tickets)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
