package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/models"
)

type CreateTicketInput struct {
	// Code is assigned from the daily sequence when empty.
	Code      string
	Passenger string
	Price     float64
	CreatedAt time.Time
}

// TicketPatch carries the fields of a partial update. Nil fields are left untouched.
type TicketPatch struct {
	Passenger *string
	Price     *float64
	Status    *string

	// EnforceTransitions rejects a status change that the lifecycle does not allow.
	EnforceTransitions bool
}

func (p TicketPatch) IsEmpty() bool {
	return p.Passenger == nil && p.Price == nil && p.Status == nil
}

// UpdatedTicket is the ticket after an update, with the status it had before.
type UpdatedTicket struct {
	models.Ticket
	PreviousStatus string
}

type TicketStore interface {
	CreateTicket(ctx context.Context, input CreateTicketInput) (models.Ticket, error)
	ListTickets(ctx context.Context) ([]models.Ticket, error)
	GetTicket(ctx context.Context, id int64) (models.Ticket, bool, error)
	UpdateTicket(ctx context.Context, id int64, patch TicketPatch) (UpdatedTicket, bool, error)
	DeleteTicket(ctx context.Context, id int64) (bool, error)
	ListTicketEvents(ctx context.Context, id int64) ([]TicketEvent, error)
}

const (
	EventTicketCreated = "ticket.created"
	EventTicketUpdated = "ticket.updated"
	EventTicketDeleted = "ticket.deleted"
)

type TicketEvent struct {
	TicketID  int64           `json:"ticket_id"`
	TicketSeq int             `json:"ticket_seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}
