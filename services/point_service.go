package services

import (
	"errors"
	"log"
	"time"

	"clan-league-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger operations take the *gorm.DB explicitly so the resolver can run
// them inside the registration transaction.

// GetClanPoint reads one ledger row. A missing row is an expected outcome
// (gorm.ErrRecordNotFound), not a failure.
func GetClanPoint(db *gorm.DB, clanID string) (*models.ClanPoint, error) {
	var point models.ClanPoint
	if err := db.Where("clan_id = ?", clanID).First(&point).Error; err != nil {
		return nil, err
	}
	return &point, nil
}

// UpsertClanPoint guarantees a ledger row exists for the clan. Existing
// rows are returned untouched.
func UpsertClanPoint(db *gorm.DB, clanID string) (*models.ClanPoint, error) {
	point, err := GetClanPoint(db, clanID)
	if err == nil {
		return point, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	point = &models.ClanPoint{
		ClanID:     clanID,
		CreateTime: now,
		UpdateTime: now,
	}
	if err := db.Create(point).Error; err != nil {
		// Lost a creation race: the row is there now, re-read it.
		if existing, rerr := GetClanPoint(db, clanID); rerr == nil {
			return existing, nil
		}
		return nil, err
	}
	return point, nil
}

// ApplyPointDelta adds delta to the clan's score with a single arithmetic
// UPDATE, then returns the fresh row.
func ApplyPointDelta(db *gorm.DB, clanID string, delta int64) (*models.ClanPoint, error) {
	res := db.Model(&models.ClanPoint{}).
		Where("clan_id = ?", clanID).
		UpdateColumns(map[string]interface{}{
			"point":       gorm.Expr("point + ?", delta),
			"update_time": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return GetClanPoint(db, clanID)
}

// ApplyRewardDelta adds delta to the clan's reward credit. Positive accrual
// stops at models.RewardCreditCap (the excess is dropped); consumption and
// penalties always apply. Runs read-modify-write in a transaction.
func ApplyRewardDelta(db *gorm.DB, clanID string, delta int64) (*models.ClanPoint, error) {
	var updated *models.ClanPoint
	err := db.Transaction(func(tx *gorm.DB) error {
		point, err := GetClanPoint(tx, clanID)
		if err != nil {
			return err
		}

		next := point.RewardCredit + delta
		if delta > 0 && next > models.RewardCreditCap {
			next = models.RewardCreditCap
			if point.RewardCredit > models.RewardCreditCap {
				next = point.RewardCredit
			}
		}

		point.RewardCredit = next
		point.UpdateTime = time.Now().UTC()
		if err := tx.Model(&models.ClanPoint{}).
			Where("clan_id = ?", clanID).
			UpdateColumns(map[string]interface{}{
				"reward_credit": point.RewardCredit,
				"update_time":   point.UpdateTime,
			}).Error; err != nil {
			return err
		}
		updated = point
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type PointService struct {
	DB *gorm.DB
}

func NewPointService(db *gorm.DB) *PointService {
	return &PointService{DB: db}
}

// --- Handlers ---

// GetClanPointEndpoint returns one clan's ledger row.
func (s *PointService) GetClanPointEndpoint(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid clan ID"})
	}

	point, err := GetClanPoint(s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Clan has no ledger entry"})
		}
		log.Printf("DB Error fetching clan point %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(point)
}

// GrantReward applies a manual credit adjustment and records the audit row.
// HitExternal banks +1 credit (capped), FaceBlack books a -1 penalty debt.
func (s *PointService) GrantReward(c *fiber.Ctx) error {
	var req struct {
		RoundID    string            `json:"round_id" validate:"required,uuid"`
		ClanID     string            `json:"clan_id" validate:"required,uuid"`
		Text       string            `json:"text"`
		RewardKind models.RewardKind `json:"reward_kind"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if _, err := uuid.Parse(req.ClanID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid clan ID"})
	}
	if _, err := uuid.Parse(req.RoundID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid round ID"})
	}

	var delta int64
	switch req.RewardKind {
	case models.RewardKindHitExternal:
		delta = 1
	case models.RewardKindFaceBlack:
		delta = -1
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown reward kind"})
	}

	var point *models.ClanPoint
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := UpsertClanPoint(tx, req.ClanID); err != nil {
			return err
		}
		var err error
		if point, err = ApplyRewardDelta(tx, req.ClanID, delta); err != nil {
			return err
		}
		entry := &models.OperateLog{
			ID:         uuid.NewString(),
			RoundID:    req.RoundID,
			ClanID:     req.ClanID,
			Text:       req.Text,
			RewardKind: req.RewardKind,
			CreateTime: time.Now().UTC(),
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		log.Printf("DB Error granting reward for clan %s: %v", req.ClanID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to apply reward"})
	}

	return c.JSON(point)
}

// GetOperateLogs lists every manual credit adjustment, newest first.
func (s *PointService) GetOperateLogs(c *fiber.Ctx) error {
	var logs []models.OperateLog
	if err := s.DB.Order("create_time DESC").Find(&logs).Error; err != nil {
		log.Printf("DB Error fetching operate logs: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch logs"})
	}
	return c.JSON(logs)
}
