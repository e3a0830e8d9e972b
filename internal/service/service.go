package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/models"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/store"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxPassengerLength = 120
	// Prices are stored as NUMERIC(10,2).
	minPrice = 0.01
	maxPrice = 99999999.99
)

// Notifier receives a copy of every ticket change after it has been committed.
// previousStatus is the status before an update, empty otherwise.
type Notifier interface {
	Publish(eventType string, ticket models.Ticket, previousStatus string)
}

type Options struct {
	// StrictTransitions rejects status updates outside the ticket lifecycle.
	StrictTransitions bool
	DefaultPrice      float64
	Notifier          Notifier
}

type CreateInput struct {
	Code      string
	Passenger string
	Price     *float64
}

type PatchInput struct {
	Passenger *string
	Price     *float64
	Status    *string
}

type Service struct {
	store    store.TicketStore
	notifier Notifier
	validate *validator.Validate
	tracer   trace.Tracer
	strict   bool
	price    float64
}

func New(st store.TicketStore, options Options) *Service {
	price := options.DefaultPrice
	if price <= 0 {
		price = models.DefaultPrice
	}
	return &Service{
		store:    st,
		notifier: options.Notifier,
		validate: newValidator(),
		tracer:   otel.Tracer("ticket-service/service"),
		strict:   options.StrictTransitions,
		price:    price,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("ticket_status", func(fl validator.FieldLevel) bool {
		return store.ValidStatus(fl.Field().String())
	})
	_ = v.RegisterValidation("ticket_code", func(fl validator.FieldLevel) bool {
		return store.ValidTicketCode(fl.Field().String())
	})
	return v
}

func (s *Service) Create(ctx context.Context, input CreateInput) (models.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "tickets.create")
	defer span.End()

	passenger, err := s.passenger(input.Passenger)
	if err != nil {
		return models.Ticket{}, s.reject(span, err)
	}
	price := s.price
	if input.Price != nil {
		price = *input.Price
	}
	price, err = s.validatePrice(price)
	if err != nil {
		return models.Ticket{}, s.reject(span, err)
	}
	code := strings.TrimSpace(input.Code)
	if code != "" && s.validate.Var(code, "ticket_code") != nil {
		return models.Ticket{}, s.reject(span, &ValidationError{Field: "code", Message: "code must look like TK240917001"})
	}

	ticket, err := s.store.CreateTicket(ctx, store.CreateTicketInput{
		Code:      code,
		Passenger: passenger,
		Price:     price,
	})
	if err != nil {
		return models.Ticket{}, s.fail(span, "create", err)
	}
	span.SetAttributes(attribute.Int64("ticket.id", ticket.ID), attribute.String("ticket.code", ticket.Code))
	ticketsCreated.Inc()
	s.publish(store.EventTicketCreated, ticket, "")
	return ticket, nil
}

func (s *Service) List(ctx context.Context) ([]models.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "tickets.list")
	defer span.End()

	tickets, err := s.store.ListTickets(ctx)
	if err != nil {
		return nil, s.fail(span, "list", err)
	}
	span.SetAttributes(attribute.Int("tickets.count", len(tickets)))
	return tickets, nil
}

func (s *Service) Get(ctx context.Context, id int64) (models.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "tickets.get", trace.WithAttributes(attribute.Int64("ticket.id", id)))
	defer span.End()

	ticket, found, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return models.Ticket{}, s.fail(span, "get", err)
	}
	if !found {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, nil
}

// Patch applies the provided fields only. An empty input returns the current ticket.
func (s *Service) Patch(ctx context.Context, id int64, input PatchInput) (models.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "tickets.patch", trace.WithAttributes(attribute.Int64("ticket.id", id)))
	defer span.End()

	patch := store.TicketPatch{EnforceTransitions: s.strict}
	if input.Passenger != nil {
		passenger, err := s.passenger(*input.Passenger)
		if err != nil {
			return models.Ticket{}, s.reject(span, err)
		}
		patch.Passenger = &passenger
	}
	if input.Price != nil {
		price, err := s.validatePrice(*input.Price)
		if err != nil {
			return models.Ticket{}, s.reject(span, err)
		}
		patch.Price = &price
	}
	if input.Status != nil {
		status := strings.TrimSpace(*input.Status)
		if s.validate.Var(status, "ticket_status") != nil {
			return models.Ticket{}, s.reject(span, &ValidationError{Field: "status", Message: "status must be one of active, boarding, used, cancelled"})
		}
		patch.Status = &status
		span.SetAttributes(attribute.String("ticket.status", status))
	}

	updated, found, err := s.store.UpdateTicket(ctx, id, patch)
	if err != nil {
		return models.Ticket{}, s.fail(span, "update", err)
	}
	if !found {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if patch.IsEmpty() {
		return updated.Ticket, nil
	}
	if patch.Status != nil {
		ticketStatusUpdates.WithLabelValues(*patch.Status).Inc()
	}
	s.publish(store.EventTicketUpdated, updated.Ticket, updated.PreviousStatus)
	return updated.Ticket, nil
}

// Transition moves a ticket to status, as offered by the dashboard actions.
func (s *Service) Transition(ctx context.Context, id int64, status string) (models.Ticket, error) {
	return s.Patch(ctx, id, PatchInput{Status: &status})
}

// Delete removes a ticket. Deleting an unknown id succeeds.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "tickets.delete", trace.WithAttributes(attribute.Int64("ticket.id", id)))
	defer span.End()

	deleted, err := s.store.DeleteTicket(ctx, id)
	if err != nil {
		return s.fail(span, "delete", err)
	}
	span.SetAttributes(attribute.Bool("ticket.deleted", deleted))
	if deleted {
		ticketsDeleted.Inc()
		s.publish(store.EventTicketDeleted, models.Ticket{ID: id}, "")
	}
	return nil
}

func (s *Service) History(ctx context.Context, id int64) ([]store.TicketEvent, error) {
	ctx, span := s.tracer.Start(ctx, "tickets.history", trace.WithAttributes(attribute.Int64("ticket.id", id)))
	defer span.End()

	_, found, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, s.fail(span, "get", err)
	}
	if !found {
		return nil, store.ErrTicketNotFound
	}
	events, err := s.store.ListTicketEvents(ctx, id)
	if err != nil {
		return nil, s.fail(span, "history", err)
	}
	return events, nil
}

func (s *Service) passenger(raw string) (string, error) {
	passenger := strings.TrimSpace(raw)
	if s.validate.Var(passenger, "required") != nil {
		return "", &ValidationError{Field: "passenger", Message: "passenger is required"}
	}
	if s.validate.Var(passenger, fmt.Sprintf("max=%d", maxPassengerLength)) != nil {
		return "", &ValidationError{Field: "passenger", Message: fmt.Sprintf("passenger must be at most %d characters", maxPassengerLength)}
	}
	return passenger, nil
}

// validatePrice rounds price to cents and checks it fits the stored range.
func (s *Service) validatePrice(price float64) (float64, error) {
	cents := math.Round(price*100) / 100
	if s.validate.Var(cents, fmt.Sprintf("min=%.2f,max=%.2f", minPrice, maxPrice)) != nil {
		return 0, &ValidationError{Field: "price", Message: fmt.Sprintf("price must be between %.2f and %.2f", minPrice, maxPrice)}
	}
	return cents, nil
}

func (s *Service) publish(eventType string, ticket models.Ticket, previousStatus string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(eventType, ticket, previousStatus)
}

func (s *Service) reject(span trace.Span, err error) error {
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *Service) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errors.Is(err, store.ErrInvalidTransition) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
