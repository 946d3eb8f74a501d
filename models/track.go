package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TrackResult is the adjudicated outcome from the self clan's perspective.
// Stored as its numeric code; rendered as a string over JSON.
type TrackResult int16

const (
	TrackResultNone TrackResult = 0
	TrackResultWin  TrackResult = 1
	TrackResultLose TrackResult = 2
)

// TrackKind records how the result was decided.
type TrackKind int16

const (
	TrackKindExternal TrackKind = 0 // oracle could not (or did not) decide locally
	TrackKindInternal TrackKind = 1 // score comparison or history tie-break
	TrackKindAlliance TrackKind = 2 // oracle matched a cooperating alliance clan
	TrackKindAward    TrackKind = 3 // won through reward credit consumption
	TrackKindPenalty  TrackKind = 4 // lost through a standing credit/debt
	TrackKindReverse  TrackKind = 5 // compensating record for a reversal
)

var trackResultNames = map[TrackResult]string{
	TrackResultNone: "none",
	TrackResultWin:  "win",
	TrackResultLose: "lose",
}

var trackKindNames = map[TrackKind]string{
	TrackKindExternal: "external",
	TrackKindInternal: "internal",
	TrackKindAlliance: "alliance",
	TrackKindAward:    "award",
	TrackKindPenalty:  "penalty",
	TrackKindReverse:  "reverse",
}

func (r TrackResult) String() string { return trackResultNames[r] }
func (k TrackKind) String() string   { return trackKindNames[k] }

func (r TrackResult) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", r.String())), nil
}

func (k TrackKind) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", k.String())), nil
}

func (r *TrackResult) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for code, name := range trackResultNames {
		if name == s {
			*r = code
			return nil
		}
	}
	return fmt.Errorf("unknown track result %q", s)
}

func (k *TrackKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for code, name := range trackKindNames {
		if name == s {
			*k = code
			return nil
		}
	}
	return fmt.Errorf("unknown track kind %q", s)
}

// Inverse swaps win and lose. None has no inverse.
func (r TrackResult) Inverse() TrackResult {
	switch r {
	case TrackResultWin:
		return TrackResultLose
	case TrackResultLose:
		return TrackResultWin
	}
	return TrackResultNone
}

// Track is one immutable outcome record for a clan pairing in a round.
// A reversal inserts a new compensating row rather than mutating this one.
// The unique indexes are the final authority against double registration;
// the handler pre-check is only a fast path.
type Track struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	SelfClanID  string      `gorm:"type:uuid;not null;uniqueIndex:idx_tracks_round_self,where:kind <> 5" json:"self_clan_id"`
	RivalClanID string      `gorm:"type:uuid;not null;uniqueIndex:idx_tracks_round_rival,where:kind <> 5" json:"rival_clan_id"`
	RoundID     string      `gorm:"type:uuid;not null;uniqueIndex:idx_tracks_round_self;uniqueIndex:idx_tracks_round_rival" json:"round_id"`
	SelfTag     string      `gorm:"size:16" json:"self_tag"`
	RivalTag    string      `gorm:"size:16" json:"rival_tag"`
	SelfName    string      `gorm:"size:64" json:"self_name,omitempty"`
	RivalName   string      `gorm:"size:64" json:"rival_name,omitempty"`
	Result      TrackResult `gorm:"type:smallint;not null" json:"result"`
	Kind        TrackKind   `gorm:"type:smallint;not null" json:"kind"`

	SelfPointBefore  int64 `json:"self_point_before"`
	RivalPointBefore int64 `json:"rival_point_before"`
	SelfPointAfter   int64 `json:"self_point_after"`
	RivalPointAfter  int64 `json:"rival_point_after"`

	// Credit snapshot, set only when a reward/penalty branch fired.
	SelfCreditBefore  *int64 `json:"self_credit_before,omitempty"`
	RivalCreditBefore *int64 `json:"rival_credit_before,omitempty"`
	SelfCreditAfter   *int64 `json:"self_credit_after,omitempty"`
	RivalCreditAfter  *int64 `json:"rival_credit_after,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// Reversible reports whether this record may be inverted. Only pure
// score-comparison outcomes qualify; award, penalty, external and reverse
// records are final.
func (t *Track) Reversible() bool {
	return t.Kind == TrackKindInternal && t.Result != TrackResultNone
}
