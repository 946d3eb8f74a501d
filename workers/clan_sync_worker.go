// workers/clan_sync_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"clan-league-system/models"
	"clan-league-system/services"

	"gorm.io/gorm"
)

// ClanSyncWorker periodically refreshes member clan metadata (names, for
// now) from the game API so manual renames upstream show up locally.
type ClanSyncWorker struct {
	db       *gorm.DB
	interval time.Duration
	gameAPI  services.ClanInfoSource
}

func NewClanSyncWorker(db *gorm.DB, gameAPI services.ClanInfoSource) *ClanSyncWorker {
	return &ClanSyncWorker{
		db:       db,
		interval: 1 * time.Hour,
		gameAPI:  gameAPI,
	}
}

func (w *ClanSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Clan Sync Worker (game API → clans)…")
	go w.run(ctx)
}

func (w *ClanSyncWorker) run(ctx context.Context) {
	if err := w.syncBatch(ctx); err != nil {
		log.Printf("⚠️ Initial clan sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx); err != nil {
				log.Printf("❌ Clan sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Clan Sync Worker stopped")
			return
		}
	}
}

func (w *ClanSyncWorker) syncBatch(ctx context.Context) error {
	var clans []models.Clan
	if err := w.db.Where("status = ?", models.ClanStatusMember).Find(&clans).Error; err != nil {
		return err
	}

	updated := 0
	for _, clan := range clans {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		info, err := w.gameAPI.ClanInfo(clan.Tag)
		if err != nil {
			log.Printf("⚠️ Clan sync: lookup failed for %s: %v", clan.Tag, err)
			continue
		}
		if info.Name == "" || info.Name == clan.Name {
			continue
		}

		if err := w.db.Model(&models.Clan{}).
			Where("id = ?", clan.ID).
			Update("name", info.Name).Error; err != nil {
			log.Printf("⚠️ Clan sync: update failed for %s: %v", clan.Tag, err)
			continue
		}
		updated++
	}

	if updated > 0 {
		log.Printf("✅ Clan sync: refreshed %d clan name(s)", updated)
	}
	return nil
}
