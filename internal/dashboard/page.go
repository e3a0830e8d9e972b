package dashboard

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/models"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const pageTitle = "Tableau de Bord Téléphérique"

//go:embed templates/*.html
var templateFS embed.FS

// TicketService is the part of service.Service the dashboard drives.
type TicketService interface {
	List(ctx context.Context) ([]models.Ticket, error)
	Create(ctx context.Context, input service.CreateInput) (models.Ticket, error)
	Transition(ctx context.Context, id int64, status string) (models.Ticket, error)
	Delete(ctx context.Context, id int64) error
}

type Options struct {
	Location *time.Location
	Price    float64
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

type Handler struct {
	tickets  TicketService
	tmpl     *template.Template
	location *time.Location
	price    float64
	logger   logrus.FieldLogger
	now      func() time.Time
}

type pageData struct {
	Title        string
	Today        string
	Stats        Stats
	Filters      []Filter
	Filter       string
	Tickets      []ticketView
	EmptyMessage string
	NextCode     string
	Price        string
	Error        string
	PageURL      string
}

type ticketView struct {
	ID          int64
	Code        string
	Passenger   string
	Price       string
	Time        string
	StatusLabel string
	StatusClass string
	Actions     []Action
}

func NewHandler(tickets TicketService, options Options) (*Handler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	h := &Handler{
		tickets:  tickets,
		tmpl:     tmpl,
		location: options.Location,
		price:    options.Price,
		logger:   options.Logger,
		now:      options.Now,
	}
	if h.location == nil {
		h.location = time.UTC
	}
	if h.price <= 0 {
		h.price = models.DefaultPrice
	}
	if h.logger == nil {
		h.logger = logrus.StandardLogger()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h, nil
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handlePage)
	r.Post("/dashboard/tickets", h.handleCreate)
	r.Post("/dashboard/tickets/{id}/status", h.handleStatus)
	r.Post("/dashboard/tickets/{id}/delete", h.handleDelete)
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.tickets.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("load dashboard tickets")
		http.Error(w, "Erreur lors du chargement des billets", http.StatusInternalServerError)
		return
	}

	filter := r.URL.Query().Get("status")
	if !isStatusFilter(filter) {
		filter = FilterAll
	}
	now := h.now().In(h.location)
	stats := ComputeStats(tickets)

	data := pageData{
		Title:        pageTitle,
		Today:        FormatDate(now),
		Stats:        stats,
		Filters:      Filters(stats, filter),
		Filter:       filter,
		EmptyMessage: EmptyMessage(filter),
		NextCode:     NextCode(tickets, now),
		Price:        FormatPrice(h.price),
		Error:        ErrorMessage(r.URL.Query().Get("error")),
		PageURL:      pageURL(filter, ""),
	}
	for _, t := range FilterTickets(tickets, filter) {
		data.Tickets = append(data.Tickets, ticketView{
			ID:          t.ID,
			Code:        t.Code,
			Passenger:   t.Passenger,
			Price:       FormatPrice(t.Price),
			Time:        FormatTime(t.CreatedAt, h.location),
			StatusLabel: StatusLabel(t.Status),
			StatusClass: StatusClass(t.Status),
			Actions:     ActionsFor(t.Status),
		})
	}

	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "dashboard.html", data); err != nil {
		h.logger.WithError(err).Error("render dashboard")
		http.Error(w, "Erreur lors du chargement des billets", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, errorCreate)
		return
	}
	_, err := h.tickets.Create(r.Context(), service.CreateInput{Passenger: r.PostForm.Get("passenger")})
	if err != nil {
		var validationErr *service.ValidationError
		if errors.As(err, &validationErr) && validationErr.Field == "passenger" {
			h.redirect(w, r, errorPassenger)
			return
		}
		h.logger.WithError(err).Warn("dashboard create ticket")
		h.redirect(w, r, errorCreate)
		return
	}
	h.redirect(w, r, "")
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || r.ParseForm() != nil {
		h.redirect(w, r, errorStatus)
		return
	}
	if _, err := h.tickets.Transition(r.Context(), id, r.PostForm.Get("status")); err != nil {
		h.logger.WithError(err).WithField("ticket_id", id).Warn("dashboard update ticket status")
		h.redirect(w, r, errorStatus)
		return
	}
	h.redirect(w, r, "")
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || r.ParseForm() != nil {
		h.redirect(w, r, errorDelete)
		return
	}
	if err := h.tickets.Delete(r.Context(), id); err != nil {
		h.logger.WithError(err).WithField("ticket_id", id).Warn("dashboard delete ticket")
		h.redirect(w, r, errorDelete)
		return
	}
	h.redirect(w, r, "")
}

// redirect returns to the page, keeping the selected filter.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, errKey string) {
	http.Redirect(w, r, pageURL(r.PostFormValue("filter"), errKey), http.StatusSeeOther)
}

func pageURL(filter, errKey string) string {
	query := url.Values{}
	if isStatusFilter(filter) {
		query.Set("status", filter)
	}
	if errKey != "" {
		query.Set("error", errKey)
	}
	if len(query) == 0 {
		return "/"
	}
	return "/?" + query.Encode()
}
