package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-booking/internal/model"
)

func newEventMock(t *testing.T) (*EventRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEventRepo(db), mock
}

func TestSaveProposalOnEventWithPendingEdit(t *testing.T) {
	repo, mock := newEventMock(t)
	mock.ExpectExec(q("UPDATE events SET proposed_data = ?, edit_permission = ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT 1 FROM events WHERE id = ?")).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	err := repo.SaveProposal(context.Background(), 4, model.EventInput{Title: "New"})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatusOnMissingEvent(t *testing.T) {
	repo, mock := newEventMock(t)
	mock.ExpectExec(q("UPDATE events SET status = ? WHERE id = ? AND status = ?")).
		WithArgs(model.EventApproved, 4, model.EventPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT 1 FROM events WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	err := repo.SetStatus(context.Background(), 4, model.EventPending, model.EventApproved)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteEventWithBookings(t *testing.T) {
	repo, mock := newEventMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT 1 FROM events WHERE id = ? FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM bookings WHERE event_id = ?")).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 4)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceFromProposalRequiresSubmittedEdit(t *testing.T) {
	repo, mock := newEventMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT status, edit_permission FROM events WHERE id = ? FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "edit_permission"}).AddRow(model.EventApproved, nil))
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), &model.Event{ID: 4}, true)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceInPlaceRequiresPendingUnderLock(t *testing.T) {
	repo, mock := newEventMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT status, edit_permission FROM events WHERE id = ? FOR UPDATE")).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"status", "edit_permission"}).AddRow(model.EventApproved, nil))
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), &model.Event{ID: 4, Title: "Sneaky"}, false)
	assert.ErrorIs(t, err, ErrEventNotPending)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRefusesToDropBookedPackage(t *testing.T) {
	repo, mock := newEventMock(t)
	ev := &model.Event{
		ID: 4, Title: "Fest", StartDate: "2025-01-10", EndDate: "2025-01-10", MaxCapacity: 10,
		Packages: []model.EventPackage{{ID: 1, Name: "Basic", PriceCents: 500, Capacity: 10}},
	}
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT status, edit_permission FROM events WHERE id = ? FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "edit_permission"}).AddRow(model.EventApproved, model.EditSubmitted))
	mock.ExpectExec(q("UPDATE events SET title = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("SELECT id FROM event_packages WHERE event_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectExec(q("UPDATE event_packages SET name = ?")).
		WithArgs("Basic", 500, "[]", 10, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM booking_items WHERE package_id = ?")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), ev, true)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDAttachesChildrenAndProposal(t *testing.T) {
	repo, mock := newEventMock(t)
	cols := []string{"id", "organizer_id", "title", "description", "location", "category", "start_date", "end_date",
		"max_capacity", "status", "edit_permission", "proposed_data", "created_at", "updated_at"}
	mock.ExpectQuery(q("FROM events e WHERE e.id = ?")).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(4, 9, "Fest", "", "Pune", "music", "2025-01-10", "2025-01-11",
			100, model.EventApproved, model.EditSubmitted, []byte(`{"title":"Fest 2"}`), time.Now(), time.Now()))
	mock.ExpectQuery(q("FROM event_packages WHERE event_id IN (?)")).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "name", "price_cents", "features", "capacity"}).
			AddRow(1, 4, "Basic", 500, []byte(`["entry"]`), 60).
			AddRow(2, 4, "VIP", 1500, nil, 40))
	mock.ExpectQuery(q("FROM event_schedules WHERE event_id IN (?)")).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "date", "start", "end", "capacity"}).
			AddRow(1, 4, "2025-01-10", "10:00", "18:00", 100))

	ev, err := repo.GetByID(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "Fest", ev.Title)
	require.NotNil(t, ev.ProposedData)
	assert.Equal(t, "Fest 2", ev.ProposedData.Title)
	assert.True(t, ev.HasPendingEdit())
	require.Len(t, ev.Packages, 2)
	assert.Equal(t, []string{"entry"}, ev.Packages[0].Features)
	assert.Equal(t, []string{}, ev.Packages[1].Features)
	require.Len(t, ev.Schedules, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
