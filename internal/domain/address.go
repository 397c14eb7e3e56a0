package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Address is a postal address snapshot. Checkout always creates new
// records; they are never shared or mutated afterwards.
type Address struct {
	ID           uuid.UUID `json:"id"`
	BuildingName string    `json:"building_name"`
	Place        string    `json:"place"`
	Street       string    `json:"street"`
	City         string    `json:"city"`
	District     string    `json:"district"`
	State        string    `json:"state"`
	Country      string    `json:"country"`
	PostOffice   string    `json:"post_office"`
	PostCode     string    `json:"post_code"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate reports every missing field under the given form prefix
// ("billing", "shipping").
func (a Address) Validate(prefix string) *ValidationError {
	verr := NewValidationError()
	required := []struct {
		name  string
		value string
	}{
		{"building_name", a.BuildingName},
		{"place", a.Place},
		{"street", a.Street},
		{"city", a.City},
		{"district", a.District},
		{"state", a.State},
		{"country", a.Country},
		{"post_office", a.PostOffice},
		{"post_code", a.PostCode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			verr.Add(prefix+"."+f.name, "this field is required")
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// Snapshot returns a copy with a fresh identity.
func (a Address) Snapshot() Address {
	a.ID = uuid.New()
	a.CreatedAt = time.Time{}
	return a
}
