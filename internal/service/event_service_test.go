package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-booking/internal/model"
	"github.com/iliyamo/event-booking/internal/repository"
)

func festInput() model.EventInput {
	return model.EventInput{
		Title:       "Fest",
		Location:    "Pune",
		StartDate:   "2025-02-01",
		EndDate:     "2025-02-03",
		MaxCapacity: 100,
		Packages: []model.PackageInput{
			{Name: "Basic", PriceCents: 50000, Capacity: 60, Features: []string{"entry"}},
			{Name: "VIP", PriceCents: 150000, Capacity: 40},
		},
		Schedules: []model.ScheduleInput{{Date: "2025-02-02", StartTime: "18:00", EndTime: "22:00", Capacity: 80}},
	}
}

func newEventFixture(t *testing.T) (*EventService, *fakeStore, *countingPurger) {
	t.Helper()
	store := newFakeStore()
	purger := &countingPurger{}
	return NewEventService(store, store, purger), store, purger
}

func TestCreateEventBuildsScheduleDays(t *testing.T) {
	svc, _, _ := newEventFixture(t)
	ev, err := svc.Create(context.Background(), organizer, festInput())
	require.NoError(t, err)

	assert.Equal(t, model.EventPending, ev.Status)
	assert.Equal(t, organizer.UserID, ev.OrganizerID)
	require.Len(t, ev.Schedules, 3)
	assert.Equal(t, model.EventSchedule{ID: ev.Schedules[0].ID, EventID: ev.ID, Date: "2025-02-01", StartTime: "00:00", EndTime: "23:59", Capacity: 100}, ev.Schedules[0])
	assert.Equal(t, "18:00", ev.Schedules[1].StartTime)
	assert.Equal(t, 80, ev.Schedules[1].Capacity)
	assert.Equal(t, "2025-02-03", ev.Schedules[2].Date)
}

func TestValidateEventInput(t *testing.T) {
	cases := map[string]func(*model.EventInput){
		"missing title":      func(in *model.EventInput) { in.Title = " " },
		"bad start":          func(in *model.EventInput) { in.StartDate = "01/02/2025" },
		"end before start":   func(in *model.EventInput) { in.EndDate = "2025-01-31" },
		"zero capacity":      func(in *model.EventInput) { in.MaxCapacity = 0 },
		"no packages":        func(in *model.EventInput) { in.Packages = nil },
		"capacity mismatch":  func(in *model.EventInput) { in.Packages[1].Capacity = 39 },
		"negative price":     func(in *model.EventInput) { in.Packages[0].PriceCents = -1 },
		"schedule outside":   func(in *model.EventInput) { in.Schedules[0].Date = "2025-03-01" },
		"schedule bad time":  func(in *model.EventInput) { in.Schedules[0].StartTime = "6pm" },
		"schedule over max":  func(in *model.EventInput) { in.Schedules[0].Capacity = 101 },
		"schedule duplicate": func(in *model.EventInput) { in.Schedules = append(in.Schedules, in.Schedules[0]) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := festInput()
			mutate(&in)
			assert.ErrorIs(t, ValidateEventInput(&in), repository.ErrValidation)
		})
	}
	in := festInput()
	assert.NoError(t, ValidateEventInput(&in))
}

func TestUpdatePendingEventOverwritesInPlace(t *testing.T) {
	svc, _, purger := newEventFixture(t)
	ctx := context.Background()
	ev, err := svc.Create(ctx, organizer, festInput())
	require.NoError(t, err)

	in := festInput()
	in.Title = "Fest Reloaded"
	in.EndDate = "2025-02-01"
	in.Schedules = nil
	in.Packages[0].ID = ev.Packages[0].ID
	updated, err := svc.Update(ctx, organizer, ev.ID, in)
	require.NoError(t, err)

	assert.Equal(t, "Fest Reloaded", updated.Title)
	assert.Equal(t, model.EventPending, updated.Status)
	assert.Nil(t, updated.ProposedData)
	assert.Len(t, updated.Schedules, 1)
	assert.Equal(t, ev.Packages[0].ID, updated.Packages[0].ID)
	assert.Equal(t, 0, purger.count())

	_, err = svc.Update(ctx, client, ev.ID, in)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	in.Packages[0].ID = 9999
	_, err = svc.Update(ctx, organizer, ev.ID, in)
	assert.ErrorIs(t, err, repository.ErrValidation)
}

// approvedMidEdit approves the event right before an in-place overwrite,
// as an administrator acting between the organizer's read and write would.
type approvedMidEdit struct{ *fakeStore }

func (s approvedMidEdit) Replace(ctx context.Context, ev *model.Event, fromProposal bool) error {
	s.mu.Lock()
	s.events[ev.ID].Status = model.EventApproved
	s.mu.Unlock()
	return s.fakeStore.Replace(ctx, ev, fromProposal)
}

func TestUpdateOfEventApprovedMidEditBecomesProposal(t *testing.T) {
	store := newFakeStore()
	svc := NewEventService(approvedMidEdit{store}, store, &countingPurger{})
	ctx := context.Background()
	ev, err := svc.Create(ctx, organizer, festInput())
	require.NoError(t, err)

	in := festInput()
	in.Title = "Fest Reloaded"
	updated, err := svc.Update(ctx, organizer, ev.ID, in)
	require.NoError(t, err)

	assert.Equal(t, model.EventApproved, updated.Status)
	assert.Equal(t, "Fest", updated.Title)
	require.NotNil(t, updated.ProposedData)
	assert.Equal(t, "Fest Reloaded", updated.ProposedData.Title)
	assert.True(t, updated.HasPendingEdit())
}

func TestEditProposalWorkflow(t *testing.T) {
	svc, _, purger := newEventFixture(t)
	ctx := context.Background()
	ev, err := svc.Create(ctx, organizer, festInput())
	require.NoError(t, err)
	_, err = svc.Approve(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, purger.count())

	_, err = svc.Approve(ctx, ev.ID)
	assert.ErrorIs(t, err, repository.ErrInvalidState)

	in := festInput()
	in.Title = "Fest 2"
	staged, err := svc.Update(ctx, organizer, ev.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Fest", staged.Title)
	assert.True(t, staged.HasPendingEdit())
	require.NotNil(t, staged.ProposedData)
	assert.Equal(t, "Fest 2", staged.ProposedData.Title)

	// the public view keeps the live title and hides the proposal
	public, err := svc.Get(ctx, nil, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fest", public.Title)
	assert.Nil(t, public.ProposedData)

	_, err = svc.Update(ctx, organizer, ev.ID, in)
	assert.ErrorIs(t, err, repository.ErrInvalidState)

	applied, err := svc.ApproveUpdate(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fest 2", applied.Title)
	assert.False(t, applied.HasPendingEdit())
	assert.Nil(t, applied.ProposedData)
	assert.Equal(t, model.EventApproved, applied.Status)
	assert.Equal(t, 2, purger.count())

	_, err = svc.ApproveUpdate(ctx, ev.ID)
	assert.ErrorIs(t, err, repository.ErrInvalidState)
}

func TestRejectUpdateAllowsResubmission(t *testing.T) {
	svc, _, _ := newEventFixture(t)
	ctx := context.Background()
	ev, err := svc.Create(ctx, organizer, festInput())
	require.NoError(t, err)
	_, err = svc.Approve(ctx, ev.ID)
	require.NoError(t, err)

	_, err = svc.RejectUpdate(ctx, ev.ID)
	assert.ErrorIs(t, err, repository.ErrInvalidState)

	in := festInput()
	in.Title = "Renamed"
	_, err = svc.Update(ctx, organizer, ev.ID, in)
	require.NoError(t, err)

	rejected, err := svc.RejectUpdate(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fest", rejected.Title)
	assert.False(t, rejected.HasPendingEdit())

	_, err = svc.Update(ctx, organizer, ev.ID, in)
	assert.NoError(t, err)
}

func TestPendingEventVisibility(t *testing.T) {
	svc, _, _ := newEventFixture(t)
	ctx := context.Background()
	ev, err := svc.Create(ctx, organizer, festInput())
	require.NoError(t, err)

	_, err = svc.Get(ctx, nil, ev.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = svc.Get(ctx, &client, ev.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = svc.Get(ctx, &organizer, ev.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, &admin, ev.ID)
	assert.NoError(t, err)

	page, err := svc.List(ctx, repository.EventQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Events)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)

	pending, err := svc.ListPendingReview(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestDeleteEventRules(t *testing.T) {
	svc, store, purger := newEventFixture(t)
	ctx := context.Background()

	draft, err := svc.Create(ctx, organizer, festInput())
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Delete(ctx, client, draft.ID), repository.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, organizer, draft.ID))
	assert.Equal(t, 0, purger.count())

	live, err := svc.Create(ctx, organizer, festInput())
	require.NoError(t, err)
	_, err = svc.Approve(ctx, live.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Delete(ctx, organizer, live.ID), repository.ErrForbidden)

	store.bookings[999] = &model.Booking{ID: 999, EventID: live.ID}
	assert.ErrorIs(t, svc.Delete(ctx, admin, live.ID), repository.ErrInvalidState)
	delete(store.bookings, 999)

	require.NoError(t, svc.Delete(ctx, admin, live.ID))
	assert.Equal(t, 2, purger.count())
	assert.ErrorIs(t, svc.Delete(ctx, admin, live.ID), repository.ErrNotFound)
}

func TestAvailability(t *testing.T) {
	svc, _, _ := newEventFixture(t)
	ctx := context.Background()
	ev, err := svc.Create(ctx, organizer, festInput())
	require.NoError(t, err)
	_, err = svc.Availability(ctx, nil, ev.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.Approve(ctx, ev.ID)
	require.NoError(t, err)
	days, err := svc.Availability(ctx, nil, ev.ID)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, 80, *days[1].Remaining)
	assert.Equal(t, 40, *days[1].Packages[1].Remaining)
}
