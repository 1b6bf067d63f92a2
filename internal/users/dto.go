package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/carehub-backend/pkg/db/types"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

// UpsertUserDTO is the identity-service projection pushed on signup.
type UpsertUserDTO struct {
	ID          uuid.UUID
	Username    string
	Role        enums.UserRole
	IsOnline    bool
	Specialties []uuid.UUID
	Latitude    *float64
	Longitude   *float64
}

func (d UpsertUserDTO) ToModel() *models.User {
	specialties := dbtypes.UUIDArray(d.Specialties)
	if specialties == nil {
		specialties = dbtypes.UUIDArray{}
	}
	return &models.User{
		ID:          d.ID,
		Username:    d.Username,
		Role:        d.Role,
		IsOnline:    d.IsOnline,
		Specialties: specialties,
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
		UpdatedAt:   time.Now().UTC(),
	}
}

// PractitionerDTO is the public view of a matched practitioner.
type PractitionerDTO struct {
	ID          uuid.UUID   `json:"id"`
	Username    string      `json:"username"`
	IsOnline    bool        `json:"isOnline"`
	Specialties []uuid.UUID `json:"specialties"`
}

func ToPractitionerDTO(u *models.User) PractitionerDTO {
	return PractitionerDTO{
		ID:          u.ID,
		Username:    u.Username,
		IsOnline:    u.IsOnline,
		Specialties: []uuid.UUID(u.Specialties),
	}
}
