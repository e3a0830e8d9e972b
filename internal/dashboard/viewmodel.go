package dashboard

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/models"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/store"
)

const FilterAll = "all"

type Stats struct {
	Total     int
	Active    int
	Boarding  int
	Used      int
	Cancelled int
}

type Filter struct {
	Key      string
	Label    string
	Count    int
	Selected bool
}

// Action is a button offered on a ticket card. Delete actions carry no Status.
type Action struct {
	Label  string
	Status string
	Class  string
	Delete bool
}

// FilterTickets keeps tickets whose status equals filter. "all" and unknown filters keep everything.
func FilterTickets(tickets []models.Ticket, filter string) []models.Ticket {
	if !isStatusFilter(filter) {
		return tickets
	}
	filtered := make([]models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if store.NormalizeStatus(t.Status) == filter {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func ComputeStats(tickets []models.Ticket) Stats {
	stats := Stats{Total: len(tickets)}
	for _, t := range tickets {
		switch store.NormalizeStatus(t.Status) {
		case models.StatusActive:
			stats.Active++
		case models.StatusBoarding:
			stats.Boarding++
		case models.StatusUsed:
			stats.Used++
		case models.StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

func Filters(stats Stats, selected string) []Filter {
	if !isStatusFilter(selected) {
		selected = FilterAll
	}
	filters := []Filter{
		{Key: FilterAll, Label: "Tous", Count: stats.Total},
		{Key: models.StatusActive, Label: "Actifs", Count: stats.Active},
		{Key: models.StatusBoarding, Label: "Embarquement", Count: stats.Boarding},
		{Key: models.StatusUsed, Label: "Utilisés", Count: stats.Used},
	}
	for i := range filters {
		filters[i].Selected = filters[i].Key == selected
	}
	return filters
}

func isStatusFilter(filter string) bool {
	switch filter {
	case models.StatusActive, models.StatusBoarding, models.StatusUsed:
		return true
	default:
		return false
	}
}

// NextCode previews the code the next ticket of now's day is expected to receive.
func NextCode(tickets []models.Ticket, now time.Time) string {
	prefix := store.CodePrefix(now)
	highest := 0
	for _, t := range tickets {
		if !strings.HasPrefix(t.Code, prefix) {
			continue
		}
		seq, err := strconv.Atoi(strings.TrimPrefix(t.Code, prefix))
		if err != nil {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}
	return store.FormatTicketCode(now, highest+1)
}

func FormatPrice(price float64) string {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		price = 0
	}
	return fmt.Sprintf("$%.2f", price)
}

func FormatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "N/A"
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("15:04")
}

// FormatDate renders a day the way fr-FR locales do (dd/mm/yyyy).
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

func StatusLabel(status string) string {
	switch status {
	case models.StatusBoarding:
		return "EMBARQUEMENT"
	case models.StatusUsed:
		return "UTILISÉ"
	case models.StatusCancelled:
		return "ANNULÉ"
	default:
		return "ACTIF"
	}
}

func StatusClass(status string) string {
	switch status {
	case models.StatusBoarding, models.StatusUsed, models.StatusCancelled:
		return "status-" + status
	default:
		return "status-active"
	}
}

// ActionsFor lists the buttons a ticket card offers, following the ticket lifecycle.
func ActionsFor(status string) []Action {
	var actions []Action
	switch store.NormalizeStatus(status) {
	case models.StatusActive:
		actions = append(actions,
			Action{Label: "Embarquer", Status: models.StatusBoarding, Class: "btn-board"},
			Action{Label: "Utiliser", Status: models.StatusUsed, Class: "btn-use"},
			Action{Label: "Annuler", Status: models.StatusCancelled, Class: "btn-cancel"},
		)
	case models.StatusBoarding:
		actions = append(actions,
			Action{Label: "Terminer", Status: models.StatusUsed, Class: "btn-use"},
			Action{Label: "Annuler", Status: models.StatusCancelled, Class: "btn-cancel"},
		)
	}
	return append(actions, Action{Label: "Supprimer", Class: "btn-delete", Delete: true})
}

func EmptyMessage(filter string) string {
	switch filter {
	case models.StatusActive:
		return "Aucun billet actif trouvé."
	case models.StatusBoarding:
		return "Aucun billet en embarquement trouvé."
	case models.StatusUsed:
		return "Aucun billet utilisé trouvé."
	default:
		return "Aucun billet trouvé. Créez votre premier billet !"
	}
}

const (
	errorPassenger = "passenger"
	errorCreate    = "create"
	errorStatus    = "status"
	errorDelete    = "delete"
)

// ErrorMessage maps the error key carried in the page URL to the alert shown to the operator.
func ErrorMessage(key string) string {
	switch key {
	case errorPassenger:
		return "Veuillez entrer le nom du passager"
	case errorCreate:
		return "Échec de la création du billet"
	case errorStatus:
		return "Échec de la mise à jour du statut du billet"
	case errorDelete:
		return "Échec de la suppression du billet"
	default:
		return ""
	}
}
