package models

import "time"

// RewardCreditCap bounds positive reward accrual. Consumption and penalties
// are never capped.
const RewardCreditCap = 5

// ClanPoint is the running ledger row for one clan: the accumulated war
// score plus the banked reward/penalty credit. One row per clan, created
// lazily the first time the clan is resolved. Score represents the winner's
// accumulated points, so a lower score wins the comparison.
type ClanPoint struct {
	ClanID       string    `gorm:"primaryKey;type:uuid" json:"clan_id"`
	Point        int64     `gorm:"not null;default:0" json:"point"`
	RewardCredit int64     `gorm:"not null;default:0" json:"reward_credit"`
	Status       int16     `gorm:"type:smallint;not null;default:0" json:"status"`
	CreateTime   time.Time `gorm:"not null" json:"create_time"`
	UpdateTime   time.Time `gorm:"not null" json:"update_time"`
}
