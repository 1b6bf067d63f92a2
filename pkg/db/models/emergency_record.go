package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EmergencyRecord struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CallerID         uuid.UUID `gorm:"column:caller_id;type:uuid;not null;index"`
	FacilityID       uuid.UUID `gorm:"column:facility_id;type:uuid;not null;index"`
	State            string    `gorm:"column:state;type:text;not null"`
	Ward             string    `gorm:"column:ward;type:text"`
	LGA              string    `gorm:"column:lga;type:text"`
	Address          string    `gorm:"column:address;type:text;not null"`
	NatureOfIncident string    `gorm:"column:nature_of_incident;type:text;not null"`
	Latitude         float64   `gorm:"column:latitude;not null"`
	Longitude        float64   `gorm:"column:longitude;not null"`
	DistanceKM       float64   `gorm:"column:distance_km;not null"`
	ServiceAmount    int64     `gorm:"column:service_amount;not null"`
	PercentageAmount int       `gorm:"column:percentage_amount;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (e *EmergencyRecord) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
