package models

// ClanStatus distinguishes member clans from clans seen only through
// opponent matches. Stored as the raw numeric code.
type ClanStatus int16

const (
	ClanStatusMember   ClanStatus = 1 // registered alliance member
	ClanStatusExternal ClanStatus = 3 // seen only via an external match
	ClanStatusAlliance ClanStatus = 9 // cooperating alliance, not a member
)

// Clan is a competing organizational unit identified by its in-game tag.
type Clan struct {
	ID       string     `gorm:"primaryKey;type:uuid" json:"id"`
	Tag      string     `gorm:"size:16;not null;uniqueIndex:idx_clans_tag_global" json:"tag"`
	Name     string     `gorm:"size:64" json:"name"`
	Status   ClanStatus `gorm:"type:smallint;not null;default:1;index" json:"status"`
	Global   bool       `gorm:"not null;default:true;uniqueIndex:idx_clans_tag_global" json:"global"`
	SeriesID *string    `gorm:"type:uuid;index" json:"series_id,omitempty"`

	Timestamps
}

// ClanUser links a gateway user to a clan they manage.
type ClanUser struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"index;not null;uniqueIndex:idx_clan_users_pair" json:"external_user_id"`
	ClanID         string `gorm:"type:uuid;not null;uniqueIndex:idx_clan_users_pair" json:"clan_id"`

	Timestamps
}
