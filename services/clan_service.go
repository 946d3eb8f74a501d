package services

import (
	"errors"
	"log"
	"strings"

	"clan-league-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NormalizeTag canonicalizes an in-game tag: leading hash, upper case.
func NormalizeTag(tag string) string {
	return "#" + strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}

// findMemberClan looks up a clan by tag restricted to member status. The
// resolver treats a miss here as "unknown locally" and falls back to the
// oracle, even if the tag exists as an external record.
func findMemberClan(db *gorm.DB, tag string, global bool) (*models.Clan, error) {
	var clan models.Clan
	err := db.Where("tag = ? AND status = ? AND global = ?", NormalizeTag(tag), models.ClanStatusMember, global).
		First(&clan).Error
	if err != nil {
		return nil, err
	}
	return &clan, nil
}

// findClanByTag looks up a clan by tag regardless of status.
func findClanByTag(db *gorm.DB, tag string, global bool) (*models.Clan, error) {
	var clan models.Clan
	err := db.Where("tag = ? AND global = ?", NormalizeTag(tag), global).First(&clan).Error
	if err != nil {
		return nil, err
	}
	return &clan, nil
}

// ensureClan returns the clan for the tag, inserting it with the given
// status when absent. A duplicate-insert race is resolved by re-reading
// once.
func ensureClan(db *gorm.DB, tag, name string, status models.ClanStatus, global bool) (*models.Clan, error) {
	if clan, err := findClanByTag(db, tag, global); err == nil {
		return clan, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	clan := &models.Clan{
		ID:     uuid.NewString(),
		Tag:    NormalizeTag(tag),
		Name:   name,
		Status: status,
		Global: global,
	}
	if err := db.Create(clan).Error; err != nil {
		if existing, rerr := findClanByTag(db, tag, global); rerr == nil {
			return existing, nil
		}
		return nil, err
	}
	return clan, nil
}

type ClanService struct {
	DB      *gorm.DB
	GameAPI ClanInfoSource
}

func NewClanService(db *gorm.DB, gameAPI ClanInfoSource) *ClanService {
	return &ClanService{DB: db, GameAPI: gameAPI}
}

// --- Handlers ---

func (s *ClanService) GetAllClans(c *fiber.Ctx) error {
	var clans []models.Clan
	if err := s.DB.Order("created_at ASC").Find(&clans).Error; err != nil {
		log.Printf("DB Error fetching clans: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch clans"})
	}
	return c.JSON(clans)
}

func (s *ClanService) GetClan(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid clan ID"})
	}

	var clan models.Clan
	if err := s.DB.First(&clan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Clan not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(clan)
}

// GetClanByTag resolves a member clan from its tag and server.
func (s *ClanService) GetClanByTag(c *fiber.Ctx) error {
	tag := c.Params("tag")
	global := c.Params("is_global") != "false"

	clan, err := findMemberClan(s.DB, tag, global)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Clan not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(clan)
}

// SearchClans matches the query against tags and names.
func (s *ClanService) SearchClans(c *fiber.Ctx) error {
	var text string
	if err := c.BodyParser(&text); err != nil || text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Search text required"})
	}

	pattern := "%" + text + "%"
	var clans []models.Clan
	if err := s.DB.Where("tag LIKE ? OR name LIKE ?", strings.ToUpper(pattern), pattern).
		Find(&clans).Error; err != nil {
		log.Printf("DB Error searching clans: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if len(clans) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No clan matched"})
	}
	return c.JSON(clans)
}

func (s *ClanService) CreateClan(c *fiber.Ctx) error {
	var req struct {
		Tag      string             `json:"tag" validate:"required"`
		Name     string             `json:"name"`
		Status   *models.ClanStatus `json:"status"`
		Global   *bool              `json:"global"`
		SeriesID *string            `json:"series_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.Tag == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	clan := &models.Clan{
		ID:       uuid.NewString(),
		Tag:      NormalizeTag(req.Tag),
		Name:     req.Name,
		Status:   models.ClanStatusMember,
		Global:   true,
		SeriesID: req.SeriesID,
	}
	if req.Status != nil {
		clan.Status = *req.Status
	}
	if req.Global != nil {
		clan.Global = *req.Global
	}

	if err := s.DB.Create(clan).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Clan tag already registered"})
		}
		log.Printf("DB Error creating clan: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create clan"})
	}
	return c.Status(fiber.StatusCreated).JSON(clan)
}

func (s *ClanService) UpdateClan(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid clan ID"})
	}

	var clan models.Clan
	if err := s.DB.First(&clan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Clan not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Tag      *string            `json:"tag"`
		Name     *string            `json:"name"`
		Status   *models.ClanStatus `json:"status"`
		Global   *bool              `json:"global"`
		SeriesID *string            `json:"series_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Tag != nil {
		clan.Tag = NormalizeTag(*req.Tag)
	}
	if req.Name != nil {
		clan.Name = *req.Name
	}
	if req.Status != nil {
		clan.Status = *req.Status
	}
	if req.Global != nil {
		clan.Global = *req.Global
	}
	if req.SeriesID != nil {
		clan.SeriesID = req.SeriesID
	}

	if err := s.DB.Save(&clan).Error; err != nil {
		log.Printf("DB Error updating clan %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update clan"})
	}
	return c.JSON(clan)
}

// DeleteClan removes a clan together with its ledger row and memberships.
// Clans referenced by any track stay.
func (s *ClanService) DeleteClan(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid clan ID"})
	}

	var clan models.Clan
	if err := s.DB.First(&clan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Clan not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var refs int64
	if err := s.DB.Model(&models.Track{}).
		Where("self_clan_id = ? OR rival_clan_id = ?", id, id).
		Count(&refs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if refs > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Clan has recorded outcomes and cannot be deleted"})
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("clan_id = ?", id).Delete(&models.ClanPoint{}).Error; err != nil {
			return err
		}
		if err := tx.Where("clan_id = ?", id).Delete(&models.ClanUser{}).Error; err != nil {
			return err
		}
		return tx.Delete(&clan).Error
	})
	if err != nil {
		log.Printf("DB Error deleting clan %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete clan"})
	}
	return c.JSON(fiber.Map{"message": "Clan deleted successfully"})
}

// GetClanInfo proxies the game API clan lookup.
func (s *ClanService) GetClanInfo(c *fiber.Ctx) error {
	tag := c.Params("tag")
	info, err := s.GameAPI.ClanInfo(tag)
	if err != nil {
		log.Printf("Game API clan info failed for %s: %v", tag, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Game API unavailable"})
	}
	return c.JSON(info)
}

// --- Membership handlers ---

// GetUserClans lists clans managed by the authenticated user.
func (s *ClanService) GetUserClans(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	return s.clansForUser(c, userID)
}

// GetClansForUser lists clans managed by an arbitrary user (admin view).
func (s *ClanService) GetClansForUser(c *fiber.Ctx) error {
	return s.clansForUser(c, c.Params("user_id"))
}

func (s *ClanService) clansForUser(c *fiber.Ctx, userID string) error {
	var clans []models.Clan
	err := s.DB.
		Joins("JOIN clan_users ON clan_users.clan_id = clans.id").
		Where("clan_users.external_user_id = ? AND clan_users.deleted_at IS NULL", userID).
		Find(&clans).Error
	if err != nil {
		log.Printf("DB Error fetching clans for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(clans)
}

func (s *ClanService) AddClanUser(c *fiber.Ctx) error {
	var req struct {
		ExternalUserID string `json:"external_user_id" validate:"required"`
		ClanID         string `json:"clan_id" validate:"required,uuid"`
	}
	if err := c.BodyParser(&req); err != nil || req.ExternalUserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if _, err := uuid.Parse(req.ClanID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid clan ID"})
	}

	link := &models.ClanUser{
		ID:             uuid.NewString(),
		ExternalUserID: req.ExternalUserID,
		ClanID:         req.ClanID,
	}
	if err := s.DB.Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Membership already exists"})
		}
		log.Printf("DB Error linking user to clan: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to add membership"})
	}
	return c.Status(fiber.StatusCreated).JSON(link)
}

func (s *ClanService) RemoveClanUser(c *fiber.Ctx) error {
	var req struct {
		ExternalUserID string `json:"external_user_id" validate:"required"`
		ClanID         string `json:"clan_id" validate:"required,uuid"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	res := s.DB.Where("external_user_id = ? AND clan_id = ?", req.ExternalUserID, req.ClanID).
		Delete(&models.ClanUser{})
	if res.Error != nil {
		log.Printf("DB Error removing membership: %v", res.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to remove membership"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Membership not found"})
	}
	return c.JSON(fiber.Map{"message": "Membership removed"})
}
