package services

import (
	"errors"
	"log"

	"clan-league-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TrackService struct {
	DB       *gorm.DB
	Rounds   *RoundService
	Resolver *Resolver
}

func NewTrackService(db *gorm.DB, rounds *RoundService, resolver *Resolver) *TrackService {
	return &TrackService{DB: db, Rounds: rounds, Resolver: resolver}
}

// findTrackForClanInRound returns the clan's outcome record for the round,
// whichever side it was on.
func findTrackForClanInRound(db *gorm.DB, clanID, roundID string) (*models.Track, error) {
	var track models.Track
	err := db.Where("round_id = ? AND (self_clan_id = ? OR rival_clan_id = ?)", roundID, clanID, clanID).
		First(&track).Error
	if err != nil {
		return nil, err
	}
	return &track, nil
}

// RegisterOutcome adjudicates one pairing for the active round and commits
// the result exactly once. Re-registering the same clan in the same round
// returns the existing record. Resolution and the track insert share one
// transaction, so ledger deltas roll back if the insert loses a race; the
// unique indexes are the final authority.
func (s *TrackService) RegisterOutcome(c *fiber.Ctx) error {
	var req struct {
		SelfTag  string `json:"self_tag" validate:"required"`
		RivalTag string `json:"rival_tag"`
		IsGlobal *bool  `json:"is_global"`
		Last     bool   `json:"last"`
	}
	if err := c.BodyParser(&req); err != nil || req.SelfTag == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "self_tag is required"})
	}

	isGlobal := true
	if req.IsGlobal != nil {
		isGlobal = *req.IsGlobal
	}

	round, err := s.Rounds.Latest()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No round exists yet"})
		}
		log.Printf("DB Error fetching latest round: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if round.NotOpenYet() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Round has not opened yet"})
	}

	selfTag, rivalTag, err := s.Resolver.ResolveSides(RegisterInput{
		SelfTag:        req.SelfTag,
		RivalTag:       req.RivalTag,
		IsGlobal:       isGlobal,
		PreferReversed: req.Last,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrRivalRequired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "rival_tag is required on this server"})
		case errors.Is(err, ErrNoActiveWar):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No active war found for clan"})
		default:
			log.Printf("War lookup failed for %s: %v", req.SelfTag, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "War lookup unavailable"})
		}
	}

	// Fast path: already registered this round.
	if selfClan, err := findClanByTag(s.DB, selfTag, isGlobal); err == nil {
		if existing, err := findTrackForClanInRound(s.DB, selfClan.ID, round.ID); err == nil {
			log.Printf("Clan %s already registered in round %s", selfTag, round.Code)
			return c.JSON(existing)
		}
	}

	var track *models.Track
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		track, err = s.Resolver.Resolve(tx, round, selfTag, rivalTag, isGlobal)
		if err != nil {
			return err
		}
		// A clan holds at most one outcome per round, whichever side it
		// was on. The unique indexes are per-column and cannot see a clan
		// that switched sides, so both units are re-checked here.
		for _, clanID := range []string{track.SelfClanID, track.RivalClanID} {
			if _, err := findTrackForClanInRound(tx, clanID, round.ID); err == nil {
				return errAlreadyRegistered
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		return tx.Create(track).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, errAlreadyRegistered):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Clan already registered in this round"})
		case errors.Is(err, ErrRivalUnknown):
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Oracle could not identify the rival"})
		default:
			log.Printf("Registration failed for %s vs %s: %v", selfTag, rivalTag, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to register outcome"})
		}
	}

	log.Printf("Registered %s vs %s in %s: %s/%s", selfTag, rivalTag, round.Code, track.Result, track.Kind)
	return c.Status(fiber.StatusCreated).JSON(track)
}

// ReverseOutcome inverts a previously recorded internal result by inserting
// a compensating record and applying the swapped deltas, returning both
// ledgers to their pre-match totals. Award, penalty, external and reverse
// records are final and cannot be inverted.
func (s *TrackService) ReverseOutcome(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid track ID"})
	}

	var reversed *models.Track
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var track models.Track
		if err := tx.First(&track, "id = ?", id).Error; err != nil {
			return err
		}
		if !track.Reversible() {
			return errNotReversible
		}

		// One compensation per record.
		var priorReversals int64
		if err := tx.Model(&models.Track{}).
			Where("round_id = ? AND self_clan_id = ? AND kind = ?", track.RoundID, track.SelfClanID, models.TrackKindReverse).
			Count(&priorReversals).Error; err != nil {
			return err
		}
		if priorReversals > 0 {
			return errAlreadyReversed
		}

		reversed = &models.Track{
			ID:               uuid.NewString(),
			SelfClanID:       track.SelfClanID,
			RivalClanID:      track.RivalClanID,
			RoundID:          track.RoundID,
			SelfTag:          track.SelfTag,
			RivalTag:         track.RivalTag,
			SelfName:         track.SelfName,
			RivalName:        track.RivalName,
			Result:           track.Result.Inverse(),
			Kind:             models.TrackKindReverse,
			SelfPointBefore:  track.SelfPointAfter,
			RivalPointBefore: track.RivalPointAfter,
			SelfPointAfter:   track.SelfPointBefore,
			RivalPointAfter:  track.RivalPointBefore,
		}

		if _, err := ApplyPointDelta(tx, track.SelfClanID, track.SelfPointBefore-track.SelfPointAfter); err != nil {
			return err
		}
		if _, err := ApplyPointDelta(tx, track.RivalClanID, track.RivalPointBefore-track.RivalPointAfter); err != nil {
			return err
		}
		return tx.Create(reversed).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Track not found"})
		case errors.Is(err, errNotReversible):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Only internal results can be reversed"})
		case errors.Is(err, errAlreadyReversed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Track has already been reversed"})
		default:
			log.Printf("Reversal failed for track %s: %v", id, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to reverse outcome"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(reversed)
}

var (
	errAlreadyRegistered = errors.New("clan already registered in this round")
	errNotReversible     = errors.New("track is not reversible")
	errAlreadyReversed   = errors.New("track already reversed")
)

// GetAllTracks lists every outcome record, newest first.
func (s *TrackService) GetAllTracks(c *fiber.Ctx) error {
	var tracks []models.Track
	if err := s.DB.Order("created_at DESC").Find(&tracks).Error; err != nil {
		log.Printf("DB Error fetching tracks: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tracks"})
	}
	return c.JSON(tracks)
}

// GetClanTracks lists one clan's most recent records.
func (s *TrackService) GetClanTracks(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid clan ID"})
	}

	var tracks []models.Track
	err := s.DB.Where("self_clan_id = ? OR rival_clan_id = ?", id, id).
		Order("created_at DESC").
		Limit(20).
		Find(&tracks).Error
	if err != nil {
		log.Printf("DB Error fetching tracks for clan %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tracks"})
	}
	return c.JSON(tracks)
}
