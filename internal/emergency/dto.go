package emergency

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carehub-backend/pkg/db/models"
)

// RequestInput is the caller's incident form.
type RequestInput struct {
	CallerID         uuid.UUID `json:"-"`
	NatureOfIncident string    `json:"natureOfIncident" validate:"required"`
	Address          string    `json:"address" validate:"required"`
	State            string    `json:"state" validate:"required"`
	LGA              string    `json:"lga" validate:"required"`
	Ward             string    `json:"ward" validate:"required"`
}

// FullAddress is the geocoder query, most specific part first.
func (r RequestInput) FullAddress() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{r.Address, r.Ward, r.LGA, r.State} {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, ", ")
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type ProviderDTO struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	DistanceKM float64   `json:"distance"`
}

type DispatchResult struct {
	Message          string      `json:"message"`
	RecordID         uuid.UUID   `json:"recordId"`
	IncidentLocation Location    `json:"incidentLocation"`
	Provider         ProviderDTO `json:"provider"`
	AmountCharged    int64       `json:"amountCharged"`
}

type RecordDTO struct {
	ID               uuid.UUID `json:"id"`
	CallerID         uuid.UUID `json:"callerId"`
	FacilityID       uuid.UUID `json:"facilityId"`
	NatureOfIncident string    `json:"natureOfIncident"`
	Address          string    `json:"address"`
	State            string    `json:"state"`
	LGA              string    `json:"lga"`
	Ward             string    `json:"ward"`
	Location         Location  `json:"location"`
	DistanceKM       float64   `json:"distanceKm"`
	ServiceAmount    int64     `json:"servicesAmount"`
	PercentageAmount int       `json:"percentageAmount"`
	CreatedAt        time.Time `json:"createdAt"`
}

func toRecordDTO(r models.EmergencyRecord) RecordDTO {
	return RecordDTO{
		ID:               r.ID,
		CallerID:         r.CallerID,
		FacilityID:       r.FacilityID,
		NatureOfIncident: r.NatureOfIncident,
		Address:          r.Address,
		State:            r.State,
		LGA:              r.LGA,
		Ward:             r.Ward,
		Location:         Location{Latitude: r.Latitude, Longitude: r.Longitude},
		DistanceKM:       r.DistanceKM,
		ServiceAmount:    r.ServiceAmount,
		PercentageAmount: r.PercentageAmount,
		CreatedAt:        r.CreatedAt,
	}
}
