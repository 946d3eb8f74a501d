package services

import (
	"errors"
	"testing"
	"time"

	"clan-league-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSides(t *testing.T) {
	r := NewResolver(&stubOracle{}, &stubWars{opponent: &WarOpponent{Tag: "#OPP999", Name: "Opp"}})

	t.Run("manual rival", func(t *testing.T) {
		self, rival, err := r.ResolveSides(RegisterInput{SelfTag: "abc123", RivalTag: "#def456", IsGlobal: true})
		require.NoError(t, err)
		assert.Equal(t, "#ABC123", self)
		assert.Equal(t, "#DEF456", rival)
	})

	t.Run("auto discovery", func(t *testing.T) {
		self, rival, err := r.ResolveSides(RegisterInput{SelfTag: "#ABC123", IsGlobal: true})
		require.NoError(t, err)
		assert.Equal(t, "#ABC123", self)
		assert.Equal(t, "#OPP999", rival)
	})

	t.Run("prefer reversed swaps sides", func(t *testing.T) {
		self, rival, err := r.ResolveSides(RegisterInput{SelfTag: "#ABC123", RivalTag: "#DEF456", IsGlobal: true, PreferReversed: true})
		require.NoError(t, err)
		assert.Equal(t, "#DEF456", self)
		assert.Equal(t, "#ABC123", rival)
	})

	t.Run("non-global requires rival", func(t *testing.T) {
		_, _, err := r.ResolveSides(RegisterInput{SelfTag: "#ABC123", IsGlobal: false})
		assert.ErrorIs(t, err, ErrRivalRequired)
	})

	t.Run("no active war", func(t *testing.T) {
		idle := NewResolver(&stubOracle{}, &stubWars{})
		_, _, err := idle.ResolveSides(RegisterInput{SelfTag: "#ABC123", IsGlobal: true})
		assert.ErrorIs(t, err, ErrNoActiveWar)
	})

	t.Run("war lookup failure propagates", func(t *testing.T) {
		down := NewResolver(&stubOracle{}, &stubWars{err: errors.New("api down")})
		_, _, err := down.ResolveSides(RegisterInput{SelfTag: "#ABC123", IsGlobal: true})
		assert.Error(t, err)
	})
}

func TestResolveSelfCreditWins(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))
	self := createMemberClan(t, db, "#AAA111", "Alpha")
	rival := createMemberClan(t, db, "#BBB222", "Bravo")
	seedPoint(t, db, self.ID, 10, 2)
	seedPoint(t, db, rival.ID, 10, 0)

	oracle := &stubOracle{}
	r := NewResolver(oracle, &stubWars{})

	track, err := r.Resolve(db, round, self.Tag, rival.Tag, true)
	require.NoError(t, err)

	assert.Equal(t, models.TrackResultWin, track.Result)
	assert.Equal(t, models.TrackKindAward, track.Kind)
	assert.Zero(t, oracle.calls)

	// Scores untouched, one credit consumed.
	assert.Equal(t, track.SelfPointBefore, track.SelfPointAfter)
	assert.Equal(t, track.RivalPointBefore, track.RivalPointAfter)
	require.NotNil(t, track.SelfCreditBefore)
	require.NotNil(t, track.SelfCreditAfter)
	assert.Equal(t, int64(2), *track.SelfCreditBefore)
	assert.Equal(t, int64(1), *track.SelfCreditAfter)

	point, err := GetClanPoint(db, self.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), point.RewardCredit)
	assert.Equal(t, int64(10), point.Point)
}

func TestResolveRivalDebtClears(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))
	self := createMemberClan(t, db, "#AAA111", "Alpha")
	rival := createMemberClan(t, db, "#BBB222", "Bravo")
	seedPoint(t, db, self.ID, 10, 0)
	seedPoint(t, db, rival.ID, 10, -2)

	r := NewResolver(&stubOracle{}, &stubWars{})
	track, err := r.Resolve(db, round, self.Tag, rival.Tag, true)
	require.NoError(t, err)

	assert.Equal(t, models.TrackResultWin, track.Result)
	assert.Equal(t, models.TrackKindAward, track.Kind)

	point, err := GetClanPoint(db, rival.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), point.RewardCredit)
}

func TestResolveSelfCreditOutranksRivalDebt(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))
	self := createMemberClan(t, db, "#AAA111", "Alpha")
	rival := createMemberClan(t, db, "#BBB222", "Bravo")
	seedPoint(t, db, self.ID, 10, 1)
	seedPoint(t, db, rival.ID, 10, -1)

	r := NewResolver(&stubOracle{}, &stubWars{})
	track, err := r.Resolve(db, round, self.Tag, rival.Tag, true)
	require.NoError(t, err)

	assert.Equal(t, models.TrackResultWin, track.Result)
	assert.Equal(t, models.TrackKindAward, track.Kind)

	// Self's bonus was consumed; rival's debt stays on the books.
	selfPoint, err := GetClanPoint(db, self.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), selfPoint.RewardCredit)

	rivalPoint, err := GetClanPoint(db, rival.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), rivalPoint.RewardCredit)
}

func TestResolveRivalCreditForcesLoss(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))
	self := createMemberClan(t, db, "#AAA111", "Alpha")
	rival := createMemberClan(t, db, "#BBB222", "Bravo")
	seedPoint(t, db, self.ID, 10, 0)
	seedPoint(t, db, rival.ID, 10, 3)

	r := NewResolver(&stubOracle{}, &stubWars{})
	track, err := r.Resolve(db, round, self.Tag, rival.Tag, true)
	require.NoError(t, err)

	assert.Equal(t, models.TrackResultLose, track.Result)
	assert.Equal(t, models.TrackKindPenalty, track.Kind)
	assert.Equal(t, track.SelfPointBefore, track.SelfPointAfter)

	rivalPoint, err := GetClanPoint(db, rival.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rivalPoint.RewardCredit)
}

func TestResolveSelfDebtForcesLoss(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))
	self := createMemberClan(t, db, "#AAA111", "Alpha")
	rival := createMemberClan(t, db, "#BBB222", "Bravo")
	seedPoint(t, db, self.ID, 10, -1)
	seedPoint(t, db, rival.ID, 10, 0)

	r := NewResolver(&stubOracle{}, &stubWars{})
	track, err := r.Resolve(db, round, self.Tag, rival.Tag, true)
	require.NoError(t, err)

	assert.Equal(t, models.TrackResultLose, track.Result)
	assert.Equal(t, models.TrackKindPenalty, track.Kind)

	selfPoint, err := GetClanPoint(db, self.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), selfPoint.RewardCredit)
}

func TestResolveLowerScoreWins(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))
	self := createMemberClan(t, db, "#AAA111", "Alpha")
	rival := createMemberClan(t, db, "#BBB222", "Bravo")
	seedPoint(t, db, self.ID, 5, 0)
	seedPoint(t, db, rival.ID, 10, 0)

	r := NewResolver(&stubOracle{}, &stubWars{})
	track, err := r.Resolve(db, round, self.Tag, rival.Tag, true)
	require.NoError(t, err)

	assert.Equal(t, models.TrackResultWin, track.Result)
	assert.Equal(t, models.TrackKindInternal, track.Kind)
	assert.Equal(t, int64(4), track.SelfPointAfter)
	assert.Equal(t, int64(11), track.RivalPointAfter)

	// Zero-sum invariant.
	assert.Equal(t,
		track.SelfPointBefore+track.RivalPointBefore,
		track.SelfPointAfter+track.RivalPointAfter)
	assert.Nil(t, track.SelfCreditBefore)
}

func TestResolveHigherScoreLoses(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))
	self := createMemberClan(t, db, "#AAA111", "Alpha")
	rival := createMemberClan(t, db, "#BBB222", "Bravo")
	seedPoint(t, db, self.ID, 12, 0)
	seedPoint(t, db, rival.ID, 10, 0)

	r := NewResolver(&stubOracle{}, &stubWars{})
	track, err := r.Resolve(db, round, self.Tag, rival.Tag, true)
	require.NoError(t, err)

	assert.Equal(t, models.TrackResultLose, track.Result)
	assert.Equal(t, int64(13), track.SelfPointAfter)
	assert.Equal(t, int64(9), track.RivalPointAfter)
}

func TestResolveTieBreakEqualHistoryFavorsSelf(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))
	self := createMemberClan(t, db, "#AAA111", "Alpha")
	rival := createMemberClan(t, db, "#BBB222", "Bravo")
	seedPoint(t, db, self.ID, 10, 0)
	seedPoint(t, db, rival.ID, 10, 0)

	// Three wins each across their recent history.
	other := createMemberClan(t, db, "#CCC333", "Charlie")
	for i := 0; i < 3; i++ {
		seedTrack(t, db, uuid.NewString(), self.ID, other.ID, models.TrackResultWin)
		seedTrack(t, db, uuid.NewString(), rival.ID, other.ID, models.TrackResultWin)
	}
	for i := 0; i < 2; i++ {
		seedTrack(t, db, uuid.NewString(), self.ID, other.ID, models.TrackResultLose)
		seedTrack(t, db, uuid.NewString(), rival.ID, other.ID, models.TrackResultLose)
	}

	r := NewResolver(&stubOracle{}, &stubWars{})
	track, err := r.Resolve(db, round, self.Tag, rival.Tag, true)
	require.NoError(t, err)

	assert.Equal(t, models.TrackResultWin, track.Result)
	assert.Equal(t, models.TrackKindInternal, track.Kind)
	assert.Equal(t, int64(9), track.SelfPointAfter)
	assert.Equal(t, int64(11), track.RivalPointAfter)
}

func TestResolveTieBreakThrottlesStreak(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))
	self := createMemberClan(t, db, "#AAA111", "Alpha")
	rival := createMemberClan(t, db, "#BBB222", "Bravo")
	seedPoint(t, db, self.ID, 10, 0)
	seedPoint(t, db, rival.ID, 10, 0)

	other := createMemberClan(t, db, "#CCC333", "Charlie")
	// Self is on a streak; rival has none. Wins counted as rival (a Lose
	// where the clan was the rival side) must count too.
	for i := 0; i < 3; i++ {
		seedTrack(t, db, uuid.NewString(), self.ID, other.ID, models.TrackResultWin)
	}
	seedTrack(t, db, uuid.NewString(), other.ID, self.ID, models.TrackResultLose)
	seedTrack(t, db, uuid.NewString(), other.ID, rival.ID, models.TrackResultWin)

	r := NewResolver(&stubOracle{}, &stubWars{})
	track, err := r.Resolve(db, round, self.Tag, rival.Tag, true)
	require.NoError(t, err)

	// Self has 4 recorded victories, rival 0: rival takes the round.
	assert.Equal(t, models.TrackResultLose, track.Result)
	assert.Equal(t, int64(11), track.SelfPointAfter)
	assert.Equal(t, int64(9), track.RivalPointAfter)
}

func TestResolveOracleErrUndetermined(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))

	oracle := &stubOracle{decision: &OracleDecision{
		MyTag:  "#AAA111",
		OppTag: "#BBB222",
		Err:    true,
	}}
	r := NewResolver(oracle, &stubWars{})

	track, err := r.Resolve(db, round, "#AAA111", "#BBB222", true)
	require.NoError(t, err)

	assert.Equal(t, models.TrackResultNone, track.Result)
	assert.Equal(t, models.TrackKindExternal, track.Kind)
	assert.Equal(t, 1, oracle.calls)
	assert.Equal(t, track.SelfPointBefore, track.SelfPointAfter)

	// Both sides were persisted as external clans with ledger rows.
	rival, err := findClanByTag(db, "#BBB222", true)
	require.NoError(t, err)
	assert.Equal(t, models.ClanStatusExternal, rival.Status)

	_, err = GetClanPoint(db, rival.ID)
	assert.NoError(t, err)
}

func TestResolveOracleRivalWinsMeansLose(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))

	oracle := &stubOracle{decision: &OracleDecision{
		MyTag:   "#AAA111",
		MyName:  "Alpha",
		OppTag:  "#BBB222",
		OppName: "Bravo",
		WinTag:  "#BBB222",
	}}
	r := NewResolver(oracle, &stubWars{})

	track, err := r.Resolve(db, round, "#AAA111", "", true)
	require.NoError(t, err)

	assert.Equal(t, models.TrackResultLose, track.Result)
	assert.Equal(t, models.TrackKindAlliance, track.Kind)
	assert.Equal(t, "#BBB222", track.RivalTag)
	assert.Equal(t, "Bravo", track.RivalName)

	rival, err := findClanByTag(db, "#BBB222", true)
	require.NoError(t, err)
	assert.Equal(t, models.ClanStatusAlliance, rival.Status)
}

func TestResolveOracleSelfWins(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))

	oracle := &stubOracle{decision: &OracleDecision{
		MyTag:  "#AAA111",
		OppTag: "#BBB222",
		WinTag: "#AAA111",
	}}
	r := NewResolver(oracle, &stubWars{})

	track, err := r.Resolve(db, round, "#AAA111", "", true)
	require.NoError(t, err)

	assert.Equal(t, models.TrackResultWin, track.Result)
	assert.Equal(t, models.TrackKindAlliance, track.Kind)
}

func TestResolveOracleEchoReversed(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))

	// Oracle reports the pairing from the other side's perspective.
	oracle := &stubOracle{decision: &OracleDecision{
		MyTag:   "#BBB222",
		MyName:  "Bravo",
		OppTag:  "#AAA111",
		OppName: "Alpha",
		WinTag:  "#AAA111",
	}}
	r := NewResolver(oracle, &stubWars{})

	track, err := r.Resolve(db, round, "#AAA111", "", true)
	require.NoError(t, err)

	assert.Equal(t, "#AAA111", track.SelfTag)
	assert.Equal(t, "#BBB222", track.RivalTag)
	assert.Equal(t, "Alpha", track.SelfName)
	assert.Equal(t, models.TrackResultWin, track.Result)
}

func TestResolveOracleDown(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))

	oracle := &stubOracle{err: errors.New("connection refused")}
	r := NewResolver(oracle, &stubWars{})

	// With a rival hint the registration still lands as undetermined.
	track, err := r.Resolve(db, round, "#AAA111", "#BBB222", true)
	require.NoError(t, err)
	assert.Equal(t, models.TrackResultNone, track.Result)
	assert.Equal(t, models.TrackKindExternal, track.Kind)

	// Without any rival identity there is nothing to record.
	_, err = r.Resolve(db, round, "#CCC333", "", true)
	assert.ErrorIs(t, err, ErrRivalUnknown)
}

func TestResolveKnownClanWithoutLedgerStaysLocal(t *testing.T) {
	db := newTestDB(t)
	round := createRound(t, db, time.Now().Add(-time.Hour))
	self := createMemberClan(t, db, "#AAA111", "Alpha")
	rival := createMemberClan(t, db, "#BBB222", "Bravo")
	// No ledger rows seeded: both are created lazily at zero.

	oracle := &stubOracle{}
	r := NewResolver(oracle, &stubWars{})

	track, err := r.Resolve(db, round, self.Tag, rival.Tag, true)
	require.NoError(t, err)

	assert.Zero(t, oracle.calls)
	assert.Equal(t, models.TrackKindInternal, track.Kind)
	// Equal zero scores, empty history: deterministic self win.
	assert.Equal(t, models.TrackResultWin, track.Result)
	assert.Equal(t, int64(-1), track.SelfPointAfter)
	assert.Equal(t, int64(1), track.RivalPointAfter)
}
