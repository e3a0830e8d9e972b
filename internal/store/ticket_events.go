package store

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/models"
)

var ErrBrokenEventChain = errors.New("ticket event chain is broken")

func ComputeTicketEventHash(prevHash string, ticketID int64, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%d|%s|%s|%d|%s", prevHash, ticketID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// VerifyTicketEvents checks that events form an unbroken hash chain starting at sequence 1.
func VerifyTicketEvents(events []TicketEvent) error {
	prev := ""
	for i, event := range events {
		if event.TicketSeq != i+1 {
			return fmt.Errorf("%w: expected seq %d, got %d", ErrBrokenEventChain, i+1, event.TicketSeq)
		}
		if event.PrevHash != prev {
			return fmt.Errorf("%w: prev hash mismatch at seq %d", ErrBrokenEventChain, event.TicketSeq)
		}
		want := ComputeTicketEventHash(prev, event.TicketID, event.Type, event.Payload, event.CreatedAt, event.TicketSeq)
		if event.Hash != want {
			return fmt.Errorf("%w: hash mismatch at seq %d", ErrBrokenEventChain, event.TicketSeq)
		}
		prev = event.Hash
	}
	return nil
}

// RehydrateTicket replays event snapshots and returns the last known ticket state.
func RehydrateTicket(events []TicketEvent) (models.Ticket, error) {
	var ticket models.Ticket
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		var payload struct {
			ID        int64      `json:"id"`
			Code      string     `json:"code"`
			Passenger string     `json:"passenger"`
			Price     *float64   `json:"price"`
			Status    string     `json:"status"`
			CreatedAt *time.Time `json:"created_at"`
		}
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.Ticket{}, err
		}
		if payload.ID != 0 {
			ticket.ID = payload.ID
		}
		if payload.Code != "" {
			ticket.Code = payload.Code
		}
		if payload.Passenger != "" {
			ticket.Passenger = payload.Passenger
		}
		if payload.Price != nil {
			ticket.Price = *payload.Price
		}
		if payload.Status != "" {
			ticket.Status = payload.Status
		}
		if payload.CreatedAt != nil {
			ticket.CreatedAt = *payload.CreatedAt
		}
	}
	return ticket, nil
}
