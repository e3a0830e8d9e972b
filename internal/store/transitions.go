package store

import "github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/models"

var transitionMap = map[string][]string{
	models.StatusActive:    {models.StatusBoarding, models.StatusUsed, models.StatusCancelled},
	models.StatusBoarding:  {models.StatusUsed, models.StatusCancelled},
	models.StatusUsed:      {},
	models.StatusCancelled: {},
}

// Statuses lists the lifecycle states in display order.
var Statuses = []string{
	models.StatusActive,
	models.StatusBoarding,
	models.StatusUsed,
	models.StatusCancelled,
}

func ValidStatus(status string) bool {
	_, ok := transitionMap[status]
	return ok
}

// NormalizeStatus maps a missing status to the default one.
func NormalizeStatus(status string) string {
	if status == "" {
		return models.StatusActive
	}
	return status
}

func NextStatuses(from string) []string {
	return transitionMap[NormalizeStatus(from)]
}

func IsTerminal(status string) bool {
	next, ok := transitionMap[NormalizeStatus(status)]
	return ok && len(next) == 0
}

// CanTransition reports whether a ticket in status from may move to status to.
// Keeping the same status is always allowed.
func CanTransition(from, to string) bool {
	from = NormalizeStatus(from)
	if !ValidStatus(to) {
		return false
	}
	if from == to {
		return true
	}
	for _, status := range transitionMap[from] {
		if status == to {
			return true
		}
	}
	return false
}
