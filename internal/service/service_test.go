package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/models"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	createFn func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error)
	listFn   func(ctx context.Context) ([]models.Ticket, error)
	getFn    func(ctx context.Context, id int64) (models.Ticket, bool, error)
	updateFn func(ctx context.Context, id int64, patch store.TicketPatch) (store.UpdatedTicket, bool, error)
	deleteFn func(ctx context.Context, id int64) (bool, error)
	eventsFn func(ctx context.Context, id int64) ([]store.TicketEvent, error)
}

func (f fakeStore) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	if f.createFn == nil {
		return models.Ticket{}, nil
	}
	return f.createFn(ctx, input)
}

func (f fakeStore) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	if f.listFn == nil {
		return []models.Ticket{}, nil
	}
	return f.listFn(ctx)
}

func (f fakeStore) GetTicket(ctx context.Context, id int64) (models.Ticket, bool, error) {
	if f.getFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.getFn(ctx, id)
}

func (f fakeStore) UpdateTicket(ctx context.Context, id int64, patch store.TicketPatch) (store.UpdatedTicket, bool, error) {
	if f.updateFn == nil {
		return store.UpdatedTicket{}, false, nil
	}
	return f.updateFn(ctx, id, patch)
}

func (f fakeStore) DeleteTicket(ctx context.Context, id int64) (bool, error) {
	if f.deleteFn == nil {
		return false, nil
	}
	return f.deleteFn(ctx, id)
}

func (f fakeStore) ListTicketEvents(ctx context.Context, id int64) ([]store.TicketEvent, error) {
	if f.eventsFn == nil {
		return []store.TicketEvent{}, nil
	}
	return f.eventsFn(ctx, id)
}

type published struct {
	eventType      string
	ticket         models.Ticket
	previousStatus string
}

type recordingNotifier struct {
	events []published
}

func (n *recordingNotifier) Publish(eventType string, ticket models.Ticket, previousStatus string) {
	n.events = append(n.events, published{eventType: eventType, ticket: ticket, previousStatus: previousStatus})
}

func floatPtr(v float64) *float64 { return &v }

func stringPtr(v string) *string { return &v }

func TestCreateAppliesDefaultPrice(t *testing.T) {
	var got store.CreateTicketInput
	st := fakeStore{
		createFn: func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
			got = input
			return models.Ticket{
				ID:        1,
				Code:      "TK240917001",
				Passenger: input.Passenger,
				Price:     input.Price,
				Status:    models.StatusActive,
				CreatedAt: time.Date(2024, 9, 17, 10, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	notifier := &recordingNotifier{}
	svc := New(st, Options{Notifier: notifier})

	ticket, err := svc.Create(context.Background(), CreateInput{Passenger: "  Alice  "})
	require.NoError(t, err)

	assert.Equal(t, "Alice", got.Passenger)
	assert.Equal(t, models.DefaultPrice, got.Price)
	assert.Empty(t, got.Code)
	assert.Equal(t, models.StatusActive, ticket.Status)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, store.EventTicketCreated, notifier.events[0].eventType)
	assert.Equal(t, ticket, notifier.events[0].ticket)
}

func TestCreateUsesConfiguredPrice(t *testing.T) {
	var got store.CreateTicketInput
	st := fakeStore{
		createFn: func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
			got = input
			return models.Ticket{ID: 1}, nil
		},
	}
	svc := New(st, Options{DefaultPrice: 12.5})

	_, err := svc.Create(context.Background(), CreateInput{Passenger: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, 12.5, got.Price)

	_, err = svc.Create(context.Background(), CreateInput{Passenger: "Bob", Price: floatPtr(15)})
	require.NoError(t, err)
	assert.Equal(t, 15.0, got.Price)
}

func TestPriceRoundedToCents(t *testing.T) {
	var created, patched float64
	st := fakeStore{
		createFn: func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
			created = input.Price
			return models.Ticket{ID: 1, Price: input.Price}, nil
		},
		updateFn: func(ctx context.Context, id int64, patch store.TicketPatch) (store.UpdatedTicket, bool, error) {
			patched = *patch.Price
			return store.UpdatedTicket{Ticket: models.Ticket{ID: id, Price: *patch.Price}}, true, nil
		},
	}
	svc := New(st, Options{})

	_, err := svc.Create(context.Background(), CreateInput{Passenger: "Alice", Price: floatPtr(12.346)})
	require.NoError(t, err)
	assert.Equal(t, 12.35, created)

	_, err = svc.Create(context.Background(), CreateInput{Passenger: "Alice", Price: floatPtr(0.006)})
	require.NoError(t, err)
	assert.Equal(t, 0.01, created)

	_, err = svc.Patch(context.Background(), 1, PatchInput{Price: floatPtr(maxPrice)})
	require.NoError(t, err)
	assert.Equal(t, maxPrice, patched)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name  string
		input CreateInput
		field string
	}{
		{name: "empty passenger", input: CreateInput{Passenger: ""}, field: "passenger"},
		{name: "blank passenger", input: CreateInput{Passenger: "   "}, field: "passenger"},
		{name: "long passenger", input: CreateInput{Passenger: strings.Repeat("a", maxPassengerLength+1)}, field: "passenger"},
		{name: "zero price", input: CreateInput{Passenger: "Alice", Price: floatPtr(0)}, field: "price"},
		{name: "negative price", input: CreateInput{Passenger: "Alice", Price: floatPtr(-5)}, field: "price"},
		{name: "price rounds to zero", input: CreateInput{Passenger: "Alice", Price: floatPtr(0.004)}, field: "price"},
		{name: "price overflows column", input: CreateInput{Passenger: "Alice", Price: floatPtr(1e9)}, field: "price"},
		{name: "malformed code", input: CreateInput{Passenger: "Alice", Code: "ABC"}, field: "code"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			st := fakeStore{
				createFn: func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
					called = true
					return models.Ticket{}, nil
				},
			}
			notifier := &recordingNotifier{}
			svc := New(st, Options{Notifier: notifier})

			_, err := svc.Create(context.Background(), tc.input)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.field, validationErr.Field)
			assert.False(t, called)
			assert.Empty(t, notifier.events)
		})
	}
}

func TestCreateWrapsStoreErrors(t *testing.T) {
	st := fakeStore{
		createFn: func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
			return models.Ticket{}, store.ErrDuplicateCode
		},
	}
	notifier := &recordingNotifier{}
	svc := New(st, Options{Notifier: notifier})

	_, err := svc.Create(context.Background(), CreateInput{Passenger: "Alice", Code: "TK240917001"})

	var persistenceErr *PersistenceError
	require.ErrorAs(t, err, &persistenceErr)
	assert.Equal(t, "create", persistenceErr.Op)
	assert.ErrorIs(t, err, store.ErrDuplicateCode)
	assert.Empty(t, notifier.events)
}

func TestGetNotFound(t *testing.T) {
	svc := New(fakeStore{}, Options{})

	_, err := svc.Get(context.Background(), 42)

	assert.ErrorIs(t, err, store.ErrTicketNotFound)
}

func TestListPassesThrough(t *testing.T) {
	st := fakeStore{
		listFn: func(ctx context.Context) ([]models.Ticket, error) {
			return []models.Ticket{{ID: 2}, {ID: 1}}, nil
		},
	}
	svc := New(st, Options{})

	tickets, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, int64(2), tickets[0].ID)
}

func TestPatchBuildsPartialUpdate(t *testing.T) {
	var got store.TicketPatch
	st := fakeStore{
		updateFn: func(ctx context.Context, id int64, patch store.TicketPatch) (store.UpdatedTicket, bool, error) {
			got = patch
			return store.UpdatedTicket{
				Ticket:         models.Ticket{ID: id, Passenger: "Alice", Status: *patch.Status},
				PreviousStatus: models.StatusActive,
			}, true, nil
		},
	}
	notifier := &recordingNotifier{}
	svc := New(st, Options{StrictTransitions: true, Notifier: notifier})

	ticket, err := svc.Patch(context.Background(), 7, PatchInput{Status: stringPtr(models.StatusBoarding)})
	require.NoError(t, err)

	assert.Nil(t, got.Passenger)
	assert.Nil(t, got.Price)
	require.NotNil(t, got.Status)
	assert.Equal(t, models.StatusBoarding, *got.Status)
	assert.True(t, got.EnforceTransitions)
	assert.Equal(t, models.StatusBoarding, ticket.Status)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, store.EventTicketUpdated, notifier.events[0].eventType)
	assert.Equal(t, models.StatusActive, notifier.events[0].previousStatus)
}

func TestPatchEmptyDoesNotNotify(t *testing.T) {
	st := fakeStore{
		updateFn: func(ctx context.Context, id int64, patch store.TicketPatch) (store.UpdatedTicket, bool, error) {
			if !patch.IsEmpty() {
				t.Fatalf("expected empty patch, got %+v", patch)
			}
			return store.UpdatedTicket{Ticket: models.Ticket{ID: id, Status: models.StatusActive}}, true, nil
		},
	}
	notifier := &recordingNotifier{}
	svc := New(st, Options{Notifier: notifier})

	ticket, err := svc.Patch(context.Background(), 3, PatchInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), ticket.ID)
	assert.Empty(t, notifier.events)
}

func TestPatchRejectsInvalidFields(t *testing.T) {
	cases := []struct {
		name  string
		input PatchInput
		field string
	}{
		{name: "unknown status", input: PatchInput{Status: stringPtr("lost")}, field: "status"},
		{name: "empty status", input: PatchInput{Status: stringPtr("")}, field: "status"},
		{name: "blank passenger", input: PatchInput{Passenger: stringPtr(" ")}, field: "passenger"},
		{name: "zero price", input: PatchInput{Price: floatPtr(0)}, field: "price"},
		{name: "price rounds to zero", input: PatchInput{Price: floatPtr(0.004)}, field: "price"},
		{name: "price overflows column", input: PatchInput{Price: floatPtr(1e9)}, field: "price"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := fakeStore{
				updateFn: func(ctx context.Context, id int64, patch store.TicketPatch) (store.UpdatedTicket, bool, error) {
					t.Fatalf("store should not be called")
					return store.UpdatedTicket{}, false, nil
				},
			}
			svc := New(st, Options{})

			_, err := svc.Patch(context.Background(), 1, tc.input)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.field, validationErr.Field)
		})
	}
}

func TestPatchNotFound(t *testing.T) {
	svc := New(fakeStore{}, Options{})

	_, err := svc.Patch(context.Background(), 9, PatchInput{Passenger: stringPtr("Carol")})

	assert.ErrorIs(t, err, store.ErrTicketNotFound)
}

func TestTransitionRejectedByLifecycle(t *testing.T) {
	st := fakeStore{
		updateFn: func(ctx context.Context, id int64, patch store.TicketPatch) (store.UpdatedTicket, bool, error) {
			return store.UpdatedTicket{}, true, store.ErrInvalidTransition
		},
	}
	notifier := &recordingNotifier{}
	svc := New(st, Options{StrictTransitions: true, Notifier: notifier})

	_, err := svc.Transition(context.Background(), 1, models.StatusActive)

	assert.ErrorIs(t, err, store.ErrInvalidTransition)
	var persistenceErr *PersistenceError
	assert.False(t, errors.As(err, &persistenceErr))
	assert.Empty(t, notifier.events)
}

func TestDeleteIsIdempotent(t *testing.T) {
	deleted := map[int64]bool{5: true}
	st := fakeStore{
		deleteFn: func(ctx context.Context, id int64) (bool, error) {
			existed := deleted[id]
			delete(deleted, id)
			return existed, nil
		},
	}
	notifier := &recordingNotifier{}
	svc := New(st, Options{Notifier: notifier})

	require.NoError(t, svc.Delete(context.Background(), 5))
	require.NoError(t, svc.Delete(context.Background(), 5))
	require.NoError(t, svc.Delete(context.Background(), 999))

	require.Len(t, notifier.events, 1)
	assert.Equal(t, store.EventTicketDeleted, notifier.events[0].eventType)
	assert.Equal(t, int64(5), notifier.events[0].ticket.ID)
}

func TestDeleteStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	st := fakeStore{
		deleteFn: func(ctx context.Context, id int64) (bool, error) {
			return false, boom
		},
	}
	svc := New(st, Options{})

	err := svc.Delete(context.Background(), 1)

	var persistenceErr *PersistenceError
	require.ErrorAs(t, err, &persistenceErr)
	assert.ErrorIs(t, err, boom)
}

func TestHistoryRequiresTicket(t *testing.T) {
	svc := New(fakeStore{
		eventsFn: func(ctx context.Context, id int64) ([]store.TicketEvent, error) {
			t.Fatalf("events should not be listed for a missing ticket")
			return nil, nil
		},
	}, Options{})

	_, err := svc.History(context.Background(), 1)
	assert.ErrorIs(t, err, store.ErrTicketNotFound)
}

func TestHistoryReturnsEvents(t *testing.T) {
	st := fakeStore{
		getFn: func(ctx context.Context, id int64) (models.Ticket, bool, error) {
			return models.Ticket{ID: id}, true, nil
		},
		eventsFn: func(ctx context.Context, id int64) ([]store.TicketEvent, error) {
			return []store.TicketEvent{
				{TicketID: id, TicketSeq: 1, Type: store.EventTicketCreated},
				{TicketID: id, TicketSeq: 2, Type: store.EventTicketUpdated},
			}, nil
		},
	}
	svc := New(st, Options{})

	events, err := svc.History(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, store.EventTicketUpdated, events[1].Type)
}
