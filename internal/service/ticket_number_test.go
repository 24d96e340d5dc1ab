package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/event-booking/internal/model"
)

func TestTicketNumber(t *testing.T) {
	b := model.Booking{ID: 42, EventID: 7}
	n1 := TicketNumber(b, 1)
	n2 := TicketNumber(b, 1)

	assert.Regexp(t, `^TKT-7-42-[0-9A-F]{8}-1$`, n1)
	assert.NotEqual(t, n1, n2)
	assert.Regexp(t, `-3$`, TicketNumber(b, 3))
}
