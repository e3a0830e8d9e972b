package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/models"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/service"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// TicketService is the part of service.Service the HTTP layer depends on.
type TicketService interface {
	Create(ctx context.Context, input service.CreateInput) (models.Ticket, error)
	List(ctx context.Context) ([]models.Ticket, error)
	Get(ctx context.Context, id int64) (models.Ticket, error)
	Patch(ctx context.Context, id int64, input service.PatchInput) (models.Ticket, error)
	Delete(ctx context.Context, id int64) error
	History(ctx context.Context, id int64) ([]store.TicketEvent, error)
}

type Handler struct {
	tickets     TicketService
	validate    *validator.Validate
	idempotency *Idempotency
}

type Options struct {
	// Idempotency guards ticket creation when set.
	Idempotency *Idempotency
}

type createTicketRequest struct {
	Code      string   `json:"code" validate:"omitempty,len=11"`
	Passenger string   `json:"passenger" validate:"required"`
	Price     *float64 `json:"price"`
}

type patchTicketRequest struct {
	Passenger *string  `json:"passenger"`
	Price     *float64 `json:"price"`
	Status    *string  `json:"status"`
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(tickets TicketService, options Options) *Handler {
	return &Handler{
		tickets:     tickets,
		validate:    validator.New(),
		idempotency: options.Idempotency,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/tickets", h.ticketRoutes)
	r.Route("/api/tickets", h.ticketRoutes)
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) ticketRoutes(r chi.Router) {
	r.Get("/", h.handleListTickets)
	if h.idempotency != nil {
		r.With(h.idempotency.Middleware).Post("/", h.handleCreateTicket)
	} else {
		r.Post("/", h.handleCreateTicket)
	}
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGetTicket)
		r.Put("/", h.handlePatchTicket)
		r.Patch("/", h.handlePatchTicket)
		r.Delete("/", h.handleDeleteTicket)
		r.Get("/events", h.handleTicketEvents)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.tickets.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return
	}

	ticket, err := h.tickets.Create(r.Context(), service.CreateInput{
		Code:      req.Code,
		Passenger: req.Passenger,
		Price:     req.Price,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketID(r)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	ticket, err := h.tickets.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handlePatchTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketID(r)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var req patchTicketRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ticket, err := h.tickets.Patch(r.Context(), id, service.PatchInput{
		Passenger: req.Passenger,
		Price:     req.Price,
		Status:    req.Status,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketID(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.tickets.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTicketEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketID(r)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	events, err := h.tickets.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func ticketID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeRequest(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid request payload"
	}
	switch fieldErrs[0].Field() {
	case "Passenger":
		return "passenger is required"
	case "Code":
		return "code must look like TK240917001"
	default:
		return "invalid request payload"
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrTicketNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	status, code, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		LoggerFromContext(r.Context()).WithError(err).Error("ticket request failed")
	}
	writeError(w, status, code, msg)
}

func mapError(err error) (int, string, string) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "invalid_request", validationErr.Message
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", "ticket status does not allow this change"
	case errors.Is(err, store.ErrDuplicateCode):
		return http.StatusConflict, "duplicate_code", "ticket code already exists"
	case errors.Is(err, store.ErrSequenceExhausted):
		return http.StatusConflict, "sequence_exhausted", "no ticket codes left for today"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
