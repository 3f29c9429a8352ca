// Package entity defines the domain models for the symbollist feature.
package entity

import "time"

// Symbol is an entry of the collection watch list.
// Codes are stored normalized (upper-case, no quote suffix) and were validated
// against Provider when added.
type Symbol struct {
	ID        uint      `gorm:"primaryKey"`
	Code      string    `gorm:"size:32;not null;uniqueIndex"`
	Name      string    `gorm:"size:255;not null"`
	Provider  string    `gorm:"size:32;not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	SortKey   int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
