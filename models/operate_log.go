package models

import "time"

// RewardKind classifies an administrative credit adjustment.
type RewardKind int16

const (
	RewardKindHitExternal RewardKind = 0 // banked bonus for beating an outside clan
	RewardKindFaceBlack   RewardKind = 1 // penalty debt for a rules violation
)

// OperateLog is an audit row for every manual reward or penalty applied to
// a clan's credit balance.
type OperateLog struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	RoundID    string     `gorm:"type:uuid;not null;index" json:"round_id"`
	ClanID     string     `gorm:"type:uuid;not null;index" json:"clan_id"`
	Text       string     `gorm:"type:text" json:"text"`
	RewardKind RewardKind `gorm:"type:smallint;not null" json:"reward_kind"`
	CreateTime time.Time  `gorm:"not null" json:"create_time"`
}
