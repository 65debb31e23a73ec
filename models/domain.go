package models

import (
	"gorm.io/gorm"
)

// DomainEntry is a single allow/deny list record. Value holds either a
// bare domain or a full email address, always stored lower-cased so
// lookups stay case-insensitive. Trusted and Blacklisted are mutually
// exclusive; the registry enforces that on write.
type DomainEntry struct {
	gorm.Model
	Value       string `gorm:"not null;index" json:"value"`
	Trusted     bool   `gorm:"default:false" json:"trusted"`
	Blacklisted bool   `gorm:"default:false" json:"blacklisted"`
}
