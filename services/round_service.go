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

// ErrNoNewPeriod means the supplied effective time matches the latest round,
// i.e. the calendar has not moved yet. Reported, never retried.
var ErrNoNewPeriod = errors.New("no new period yet")

type RoundService struct {
	DB *gorm.DB
}

func NewRoundService(db *gorm.DB) *RoundService {
	return &RoundService{DB: db}
}

// Latest returns the round with the highest create_time.
func (s *RoundService) Latest() (*models.Round, error) {
	var round models.Round
	if err := s.DB.Order("create_time DESC").First(&round).Error; err != nil {
		return nil, err
	}
	return &round, nil
}

// Create opens a new round effective at roundTime. The code is derived from
// the effective date. Creating a round for the current period again fails
// with ErrNoNewPeriod.
func (s *RoundService) Create(roundTime time.Time) (*models.Round, error) {
	last, err := s.Latest()
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if last != nil && last.RoundTime.Equal(roundTime) {
		return nil, ErrNoNewPeriod
	}

	round := &models.Round{
		ID:         uuid.NewString(),
		Code:       models.CodeFor(roundTime),
		RoundTime:  roundTime,
		CreateTime: time.Now().UTC(),
	}
	if err := s.DB.Create(round).Error; err != nil {
		return nil, err
	}
	return round, nil
}

// ParseRoundTime accepts the calendar's local datetime labels, with or
// without seconds.
func ParseRoundTime(value string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", value, time.Local); err == nil {
		return t.UTC(), nil
	}
	return parseMinute(value)
}

func parseMinute(value string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02T15:04", value, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// --- Handlers ---

// GetAllRounds lists every round, newest first.
func (s *RoundService) GetAllRounds(c *fiber.Ctx) error {
	var rounds []models.Round
	if err := s.DB.Order("create_time DESC").Find(&rounds).Error; err != nil {
		log.Printf("DB Error fetching rounds: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rounds"})
	}
	return c.JSON(rounds)
}

// GetLastRound returns the active round.
func (s *RoundService) GetLastRound(c *fiber.Ctx) error {
	round, err := s.Latest()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No round exists yet"})
		}
		log.Printf("DB Error fetching last round: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(round)
}

// CreateRound opens a new competition period (admin action).
func (s *RoundService) CreateRound(c *fiber.Ctx) error {
	var req struct {
		Time string `json:"time" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || req.Time == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	roundTime, err := ParseRoundTime(req.Time)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid time format"})
	}

	round, err := s.Create(roundTime)
	if err != nil {
		if errors.Is(err, ErrNoNewPeriod) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Round for this period already exists"})
		}
		log.Printf("DB Error creating round: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create round"})
	}
	return c.Status(fiber.StatusCreated).JSON(round)
}
