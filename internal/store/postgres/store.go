package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/models"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ticketColumns = `id, code, passenger, price, COALESCE(status, 'active'), created_at`

type Store struct {
	pool     *pgxpool.Pool
	location *time.Location
}

type Options struct {
	// Location decides which calendar day a ticket code belongs to.
	Location *time.Location
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	location := options.Location
	if location == nil {
		location = time.UTC
	}
	return &Store{
		pool:     pool,
		location: location,
	}
}

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, fmt.Errorf("begin create ticket: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	createdAt = createdAt.Truncate(time.Microsecond)

	var (
		ticket   models.Ticket
		inserted bool
	)
	if input.Code != "" {
		ticket, inserted, err = insertTicket(ctx, tx, input.Code, input.Passenger, input.Price, createdAt)
		if err != nil {
			return models.Ticket{}, err
		}
		if !inserted {
			return models.Ticket{}, store.ErrDuplicateCode
		}
	} else {
		day := createdAt.In(s.location)
		// A code supplied explicitly earlier may already hold the next number; skip it.
		for !inserted {
			seq, err := nextDailySequence(ctx, tx, day)
			if err != nil {
				return models.Ticket{}, err
			}
			if seq > store.MaxDailySequence {
				return models.Ticket{}, store.ErrSequenceExhausted
			}
			ticket, inserted, err = insertTicket(ctx, tx, store.FormatTicketCode(day, seq), input.Passenger, input.Price, createdAt)
			if err != nil {
				return models.Ticket{}, err
			}
		}
	}

	if err = insertTicketEvent(ctx, tx, ticket, store.EventTicketCreated); err != nil {
		return models.Ticket{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, fmt.Errorf("commit create ticket: %w", err)
	}
	return ticket, nil
}

func (s *Store) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

func (s *Store) GetTicket(ctx context.Context, id int64) (models.Ticket, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, fmt.Errorf("get ticket %d: %w", id, err)
	}
	return ticket, true, nil
}

func (s *Store) UpdateTicket(ctx context.Context, id int64, patch store.TicketPatch) (store.UpdatedTicket, bool, error) {
	if patch.IsEmpty() {
		ticket, found, err := s.GetTicket(ctx, id)
		return store.UpdatedTicket{Ticket: ticket, PreviousStatus: ticket.Status}, found, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.UpdatedTicket{}, false, fmt.Errorf("begin update ticket: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, found, err := lockTicketStatus(ctx, tx, id)
	if err != nil {
		return store.UpdatedTicket{}, false, err
	}
	if !found {
		return store.UpdatedTicket{}, false, nil
	}
	if patch.Status != nil && patch.EnforceTransitions && !store.CanTransition(current, *patch.Status) {
		return store.UpdatedTicket{}, true, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, current, *patch.Status)
	}

	row := tx.QueryRow(ctx, `
		UPDATE tickets SET
			passenger = COALESCE($2, passenger),
			price = COALESCE($3, price),
			status = COALESCE($4, status)
		WHERE id = $1
		RETURNING `+ticketColumns,
		id, patch.Passenger, patch.Price, patch.Status)
	ticket, err := scanTicket(row)
	if err != nil {
		return store.UpdatedTicket{}, false, fmt.Errorf("update ticket %d: %w", id, err)
	}

	if err = insertTicketEvent(ctx, tx, ticket, store.EventTicketUpdated); err != nil {
		return store.UpdatedTicket{}, false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return store.UpdatedTicket{}, false, fmt.Errorf("commit update ticket: %w", err)
	}
	return store.UpdatedTicket{Ticket: ticket, PreviousStatus: current}, true, nil
}

func (s *Store) DeleteTicket(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete ticket %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListTicketEvents(ctx context.Context, id int64) ([]store.TicketEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ticket_id, ticket_seq, type, payload, created_at, prev_hash, hash
		FROM ticket_events
		WHERE ticket_id = $1
		ORDER BY ticket_seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list ticket events: %w", err)
	}
	defer rows.Close()

	events := []store.TicketEvent{}
	for rows.Next() {
		var event store.TicketEvent
		if err := rows.Scan(&event.TicketID, &event.TicketSeq, &event.Type, &event.Payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, fmt.Errorf("scan ticket event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ticket events: %w", err)
	}
	return events, nil
}

func insertTicket(ctx context.Context, tx pgx.Tx, code, passenger string, price float64, createdAt time.Time) (models.Ticket, bool, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO tickets (code, passenger, price, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO NOTHING
		RETURNING `+ticketColumns,
		code, passenger, price, createdAt)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, fmt.Errorf("insert ticket: %w", err)
	}
	return ticket, true, nil
}

func nextDailySequence(ctx context.Context, tx pgx.Tx, day time.Time) (int, error) {
	var next int
	row := tx.QueryRow(ctx, `
		INSERT INTO ticket_sequences (day, next_number)
		VALUES ($1::date, 1)
		ON CONFLICT (day)
		DO UPDATE SET next_number = ticket_sequences.next_number + 1
		RETURNING next_number
	`, day.Format("2006-01-02"))
	if err := row.Scan(&next); err != nil {
		return 0, fmt.Errorf("next ticket sequence: %w", err)
	}
	return next, nil
}

func lockTicketStatus(ctx context.Context, tx pgx.Tx, id int64) (string, bool, error) {
	var status string
	row := tx.QueryRow(ctx, `SELECT COALESCE(status, 'active') FROM tickets WHERE id = $1 FOR UPDATE`, id)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lock ticket %d: %w", id, err)
	}
	return status, true, nil
}

// insertTicketEvent appends a snapshot of ticket to its audit chain. Callers hold the ticket row.
func insertTicketEvent(ctx context.Context, tx pgx.Tx, ticket models.Ticket, eventType string) error {
	payload, err := json.Marshal(ticket)
	if err != nil {
		return err
	}

	var lastSeq int
	var prevHash string
	row := tx.QueryRow(ctx, `
		SELECT ticket_seq, hash
		FROM ticket_events
		WHERE ticket_id = $1
		ORDER BY ticket_seq DESC
		LIMIT 1
	`, ticket.ID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("load last ticket event: %w", err)
	}
	nextSeq := lastSeq + 1
	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	hash := store.ComputeTicketEventHash(prevHash, ticket.ID, eventType, payload, createdAt, nextSeq)

	_, err = tx.Exec(ctx, `
		INSERT INTO ticket_events (ticket_id, ticket_seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ticket.ID, nextSeq, eventType, string(payload), createdAt, prevHash, hash)
	if err != nil {
		return fmt.Errorf("insert ticket event: %w", err)
	}
	return nil
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var ticket models.Ticket
	err := row.Scan(&ticket.ID, &ticket.Code, &ticket.Passenger, &ticket.Price, &ticket.Status, &ticket.CreatedAt)
	return ticket, err
}
