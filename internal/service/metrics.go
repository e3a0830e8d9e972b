package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickets_created_total",
		Help: "The total number of tickets issued",
	})
	ticketStatusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_status_changes_total",
		Help: "The total number of status changes, by target status",
	}, []string{"to"})
	ticketsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickets_deleted_total",
		Help: "The total number of tickets removed",
	})
)
