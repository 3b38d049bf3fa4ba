package model

import "time"

// Status is the lifecycle state of an appointment. The set is closed; see ParseStatus.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

var statuses = []Status{StatusPending, StatusConfirmed, StatusRejected, StatusCancelled}

func ParseStatus(s string) (Status, bool) {
	for _, st := range statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Active reports whether the appointment still holds its slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Appointment struct {
	ID          string
	ProviderID  string
	ClientID    string
	ServiceID   string
	ClientEmail string
	// StartAt is a wall-clock date and time of day, stored in UTC without zone conversion.
	StartAt   time.Time
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasParty reports whether userID is the provider or the client of the appointment.
func (a Appointment) HasParty(userID string) bool {
	return userID != "" && (userID == a.ProviderID || userID == a.ClientID)
}

// Day returns midnight of the appointment's date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
