package models

import "time"

// Round is one time-boxed competition period. Rows are immutable after
// insert; the "latest" round is the one with the highest create_time.
type Round struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	Code       string    `gorm:"size:32;not null" json:"code"`
	RoundTime  time.Time `gorm:"not null;index" json:"round_time"`
	CreateTime time.Time `gorm:"not null;index" json:"create_time"`
}

// RoundCodePrefix + yyyymmdd of the effective start forms the round code.
const RoundCodePrefix = "GLOBAL"

// CodeFor derives the deterministic round code for an effective start date.
func CodeFor(roundTime time.Time) string {
	return RoundCodePrefix + roundTime.Format("20060102")
}

// NotOpenYet reports whether registration is still closed for this round.
func (r *Round) NotOpenYet() bool {
	return r.RoundTime.After(time.Now())
}
