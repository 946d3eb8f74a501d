package services

import (
	"errors"
	"log"

	"clan-league-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrRivalRequired: the non-global server has no war lookup endpoint, so
	// manual registration must name the rival.
	ErrRivalRequired = errors.New("rival tag required for non-global registration")

	// ErrNoActiveWar: opponent auto-discovery found no running war.
	ErrNoActiveWar = errors.New("clan has no active war")

	// ErrRivalUnknown: neither the caller, the war lookup nor the oracle
	// produced a rival identity.
	ErrRivalUnknown = errors.New("rival identity could not be determined")
)

// Resolver is the outcome decision engine. It owns no storage of its own;
// every call operates on the *gorm.DB (usually the registration transaction)
// passed in, so ledger mutations commit or roll back with the track insert.
type Resolver struct {
	Oracle WarOracle
	Wars   OpponentSource
}

func NewResolver(oracle WarOracle, wars OpponentSource) *Resolver {
	return &Resolver{Oracle: oracle, Wars: wars}
}

// RegisterInput carries one registration request after body parsing.
type RegisterInput struct {
	SelfTag        string
	RivalTag       string // empty = discover via the war lookup
	IsGlobal       bool
	PreferReversed bool // caller is the second party; swap sides
}

// ResolveSides determines the final (self, rival) tag pair, calling the war
// lookup when the rival was omitted. Runs before the storage transaction:
// it is a pure network read.
func (r *Resolver) ResolveSides(in RegisterInput) (selfTag, rivalTag string, err error) {
	selfTag = NormalizeTag(in.SelfTag)
	rivalTag = in.RivalTag

	if rivalTag == "" {
		if !in.IsGlobal {
			return "", "", ErrRivalRequired
		}
		opp, err := r.Wars.CurrentOpponent(selfTag)
		if err != nil {
			return "", "", err
		}
		if opp == nil {
			return "", "", ErrNoActiveWar
		}
		rivalTag = opp.Tag
	}
	rivalTag = NormalizeTag(rivalTag)

	if in.PreferReversed {
		selfTag, rivalTag = rivalTag, selfTag
	}
	return selfTag, rivalTag, nil
}

// Resolve runs the decision state machine for one pairing and returns the
// fully populated (not yet persisted) track. Ledger side effects are applied
// through tx as part of deciding.
//
// Priority order: unknown side -> oracle fallback; controlling credit ->
// award/penalty; otherwise score comparison with a history tie-break.
func (r *Resolver) Resolve(tx *gorm.DB, round *models.Round, selfTag, rivalTag string, isGlobal bool) (*models.Track, error) {
	selfClan, selfErr := findMemberClan(tx, selfTag, isGlobal)
	rivalClan, rivalErr := findMemberClan(tx, rivalTag, isGlobal)

	if errors.Is(selfErr, gorm.ErrRecordNotFound) || errors.Is(rivalErr, gorm.ErrRecordNotFound) {
		return r.resolveExternal(tx, round, selfTag, rivalTag, isGlobal)
	}
	if selfErr != nil {
		return nil, selfErr
	}
	if rivalErr != nil {
		return nil, rivalErr
	}

	selfPoint, err := UpsertClanPoint(tx, selfClan.ID)
	if err != nil {
		return nil, err
	}
	rivalPoint, err := UpsertClanPoint(tx, rivalClan.ID)
	if err != nil {
		return nil, err
	}

	track := &models.Track{
		ID:               uuid.NewString(),
		SelfClanID:       selfClan.ID,
		RivalClanID:      rivalClan.ID,
		RoundID:          round.ID,
		SelfTag:          selfClan.Tag,
		RivalTag:         rivalClan.Tag,
		SelfName:         selfClan.Name,
		RivalName:        rivalClan.Name,
		SelfPointBefore:  selfPoint.Point,
		RivalPointBefore: rivalPoint.Point,
		SelfPointAfter:   selfPoint.Point,
		RivalPointAfter:  rivalPoint.Point,
	}

	// A controlling credit overrides the score comparison entirely. Self's
	// banked bonus outranks rival's debt; both outrank the rival-side
	// symmetric checks. Scores stay untouched on these branches.
	switch {
	case selfPoint.RewardCredit > 0:
		return track, r.applyCredit(tx, track, selfClan.ID, -1, true, models.TrackResultWin, models.TrackKindAward, selfPoint, rivalPoint)
	case rivalPoint.RewardCredit < 0:
		return track, r.applyCredit(tx, track, rivalClan.ID, +1, false, models.TrackResultWin, models.TrackKindAward, selfPoint, rivalPoint)
	case rivalPoint.RewardCredit > 0:
		return track, r.applyCredit(tx, track, rivalClan.ID, -1, false, models.TrackResultLose, models.TrackKindPenalty, selfPoint, rivalPoint)
	case selfPoint.RewardCredit < 0:
		return track, r.applyCredit(tx, track, selfClan.ID, +1, true, models.TrackResultLose, models.TrackKindPenalty, selfPoint, rivalPoint)
	}

	// Score comparison: the lagging clan wins. Accumulated points mark
	// past winners, so leaders must keep earning their wins.
	var selfWin bool
	switch {
	case selfPoint.Point < rivalPoint.Point:
		selfWin = true
	case selfPoint.Point > rivalPoint.Point:
		selfWin = false
	default:
		selfWins, err := countRecentWins(tx, selfClan.ID)
		if err != nil {
			return nil, err
		}
		rivalWins, err := countRecentWins(tx, rivalClan.ID)
		if err != nil {
			return nil, err
		}
		// Streaks are throttled: the side with fewer recent wins takes
		// the round. Equal counts favor self.
		selfWin = selfWins <= rivalWins
	}

	selfDelta, rivalDelta := int64(+1), int64(-1)
	track.Result = models.TrackResultLose
	if selfWin {
		selfDelta, rivalDelta = -1, +1
		track.Result = models.TrackResultWin
	}
	track.Kind = models.TrackKindInternal

	selfAfter, err := ApplyPointDelta(tx, selfClan.ID, selfDelta)
	if err != nil {
		return nil, err
	}
	rivalAfter, err := ApplyPointDelta(tx, rivalClan.ID, rivalDelta)
	if err != nil {
		return nil, err
	}
	track.SelfPointAfter = selfAfter.Point
	track.RivalPointAfter = rivalAfter.Point
	return track, nil
}

// applyCredit consumes one unit of credit (or clears one unit of debt) on
// the controlling side and snapshots both balances on the track.
func (r *Resolver) applyCredit(tx *gorm.DB, track *models.Track, clanID string, delta int64, onSelf bool, result models.TrackResult, kind models.TrackKind, selfPoint, rivalPoint *models.ClanPoint) error {
	track.Result = result
	track.Kind = kind

	selfBefore, rivalBefore := selfPoint.RewardCredit, rivalPoint.RewardCredit
	track.SelfCreditBefore = &selfBefore
	track.RivalCreditBefore = &rivalBefore

	updated, err := ApplyRewardDelta(tx, clanID, delta)
	if err != nil {
		return err
	}

	selfAfter, rivalAfter := selfBefore, rivalBefore
	if onSelf {
		selfAfter = updated.RewardCredit
	} else {
		rivalAfter = updated.RewardCredit
	}
	track.SelfCreditAfter = &selfAfter
	track.RivalCreditAfter = &rivalAfter
	return nil
}

// resolveExternal is the oracle fallback: at least one side is not a local
// member, so the external service adjudicates. No score math happens here;
// the track only records identities and the oracle's verdict.
func (r *Resolver) resolveExternal(tx *gorm.DB, round *models.Round, selfTag, rivalTag string, isGlobal bool) (*models.Track, error) {
	dec, err := r.Oracle.Decide(selfTag, isGlobal)
	if err != nil {
		// Unreachable oracle degrades to an undetermined result rather
		// than failing the registration.
		log.Printf("Oracle unavailable for %s: %v", selfTag, err)
		dec = &OracleDecision{Err: true}
	}

	var selfName, rivalName string
	oracleRival := ""
	switch {
	case NormalizeTag(dec.MyTag) == selfTag && dec.OppTag != "":
		oracleRival = NormalizeTag(dec.OppTag)
		selfName, rivalName = dec.MyName, dec.OppName
	case NormalizeTag(dec.OppTag) == selfTag && dec.MyTag != "":
		// Oracle echoed the sides reversed.
		oracleRival = NormalizeTag(dec.MyTag)
		selfName, rivalName = dec.OppName, dec.MyName
	}
	if oracleRival != "" {
		rivalTag = oracleRival
	}
	if rivalTag == "" || rivalTag == "#" {
		return nil, ErrRivalUnknown
	}

	status := models.ClanStatusAlliance
	if dec.Err {
		status = models.ClanStatusExternal
	}

	selfClan, err := ensureClan(tx, selfTag, selfName, models.ClanStatusExternal, isGlobal)
	if err != nil {
		return nil, err
	}
	rivalClan, err := ensureClan(tx, rivalTag, rivalName, status, isGlobal)
	if err != nil {
		return nil, err
	}

	selfPoint, err := UpsertClanPoint(tx, selfClan.ID)
	if err != nil {
		return nil, err
	}
	rivalPoint, err := UpsertClanPoint(tx, rivalClan.ID)
	if err != nil {
		return nil, err
	}

	track := &models.Track{
		ID:               uuid.NewString(),
		SelfClanID:       selfClan.ID,
		RivalClanID:      rivalClan.ID,
		RoundID:          round.ID,
		SelfTag:          selfClan.Tag,
		RivalTag:         rivalClan.Tag,
		SelfName:         selfClan.Name,
		RivalName:        rivalClan.Name,
		SelfPointBefore:  selfPoint.Point,
		RivalPointBefore: rivalPoint.Point,
		SelfPointAfter:   selfPoint.Point,
		RivalPointAfter:  rivalPoint.Point,
	}

	winTag := NormalizeTag(dec.WinTag)
	switch {
	case dec.WinTag != "" && winTag == rivalClan.Tag:
		track.Result = models.TrackResultLose
		track.Kind = models.TrackKindAlliance
	case dec.Err:
		track.Result = models.TrackResultNone
		track.Kind = models.TrackKindExternal
	default:
		track.Result = models.TrackResultWin
		track.Kind = models.TrackKindAlliance
	}
	return track, nil
}

// countRecentWins scans the clan's ten most recent tracks (any round, any
// opponent) and counts the ones it actually won: a Win where it was self,
// or a Lose where it was the rival.
func countRecentWins(db *gorm.DB, clanID string) (int, error) {
	var tracks []models.Track
	err := db.Where("self_clan_id = ? OR rival_clan_id = ?", clanID, clanID).
		Order("created_at DESC").
		Limit(10).
		Find(&tracks).Error
	if err != nil {
		return 0, err
	}

	wins := 0
	for _, t := range tracks {
		if (t.SelfClanID == clanID && t.Result == models.TrackResultWin) ||
			(t.RivalClanID == clanID && t.Result == models.TrackResultLose) {
			wins++
		}
	}
	return wins, nil
}
