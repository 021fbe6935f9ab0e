package models

import "time"

// Account is a customer account referenced by quotes. Names are unique
// case-insensitively; the stored value is trimmed at the store layer.
type Account struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"not null;uniqueIndex" json:"name"`
	Domain          string    `json:"domain,omitempty"`
	ExternalCRMIDs  JSONMap   `gorm:"column:external_crm_ids" json:"external_crm_ids,omitempty"`
	ConfidenceScore *float64  `json:"confidence_score,omitempty"` // [0,1]
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Pricebook is a named, currency-scoped price list. At most one pricebook
// is the default at any time; the store unsets all others when one is set.
type Pricebook struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null;uniqueIndex" json:"name"`
	Currency  string    `gorm:"not null" json:"currency"`
	IsDefault bool      `gorm:"not null;default:false" json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
