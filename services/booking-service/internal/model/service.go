package model

import "time"

// Service is a priced, timed offering of one provider. ID and ProviderID never change.
type Service struct {
	ID              string
	ProviderID      string
	Name            string
	DurationMinutes int
	Price           float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
