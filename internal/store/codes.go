package store

import (
	"fmt"
	"regexp"
	"time"
)

const (
	codePrefix       = "TK"
	codeDateLayout   = "060102"
	ticketNumberPad  = 3
	MaxDailySequence = 999
)

var codePattern = regexp.MustCompile(`^TK\d{6}\d{3}$`)

// CodePrefix returns the prefix shared by every ticket issued on day, e.g. TK240917.
func CodePrefix(day time.Time) string {
	return codePrefix + day.Format(codeDateLayout)
}

func FormatTicketCode(day time.Time, seq int) string {
	return fmt.Sprintf("%s%0*d", CodePrefix(day), ticketNumberPad, seq)
}

func ValidTicketCode(code string) bool {
	return codePattern.MatchString(code)
}
