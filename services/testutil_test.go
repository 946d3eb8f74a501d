package services

import (
	"fmt"
	"testing"
	"time"

	"clan-league-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Round{},
		&models.Clan{},
		&models.ClanUser{},
		&models.ClanPoint{},
		&models.Track{},
		&models.OperateLog{},
	))
	return db
}

func createMemberClan(t *testing.T, db *gorm.DB, tag, name string) *models.Clan {
	t.Helper()

	clan := &models.Clan{
		ID:     uuid.NewString(),
		Tag:    NormalizeTag(tag),
		Name:   name,
		Status: models.ClanStatusMember,
		Global: true,
	}
	require.NoError(t, db.Create(clan).Error)
	return clan
}

func createRound(t *testing.T, db *gorm.DB, roundTime time.Time) *models.Round {
	t.Helper()

	round := &models.Round{
		ID:         uuid.NewString(),
		Code:       models.CodeFor(roundTime),
		RoundTime:  roundTime,
		CreateTime: time.Now().UTC(),
	}
	require.NoError(t, db.Create(round).Error)
	return round
}

func seedPoint(t *testing.T, db *gorm.DB, clanID string, point, credit int64) {
	t.Helper()

	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.ClanPoint{
		ClanID:       clanID,
		Point:        point,
		RewardCredit: credit,
		CreateTime:   now,
		UpdateTime:   now,
	}).Error)
}

// seedTrack inserts a historical outcome record for tie-break fixtures.
func seedTrack(t *testing.T, db *gorm.DB, roundID, selfID, rivalID string, result models.TrackResult) {
	t.Helper()

	require.NoError(t, db.Create(&models.Track{
		ID:          uuid.NewString(),
		SelfClanID:  selfID,
		RivalClanID: rivalID,
		RoundID:     roundID,
		Result:      result,
		Kind:        models.TrackKindInternal,
	}).Error)
}

type stubOracle struct {
	decision *OracleDecision
	err      error
	calls    int
}

func (s *stubOracle) Decide(tag string, isGlobal bool) (*OracleDecision, error) {
	s.calls++
	return s.decision, s.err
}

type stubWars struct {
	opponent *WarOpponent
	err      error
}

func (s *stubWars) CurrentOpponent(tag string) (*WarOpponent, error) {
	return s.opponent, s.err
}
