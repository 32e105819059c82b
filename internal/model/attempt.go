package model

import "gorm.io/gorm"

// Attempt is the audit row written after each finished transfer
// attempt. It is append-only bookkeeping; jobs are never rebuilt from
// it.
type Attempt struct {
	gorm.Model
	JobID      int    `gorm:"index;not null"`
	SrcURL     string `gorm:"not null"`
	DestURL    string `gorm:"not null"`
	Status     string `gorm:"not null"`
	ExitCode   int
	DurationMS int
	Tries      int
}
