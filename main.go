package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"clan-league-system/handlers"
	"clan-league-system/middleware"
	"clan-league-system/models"
	"clan-league-system/services"
	"clan-league-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Round{},
		&models.Clan{},
		&models.ClanUser{},
		&models.ClanPoint{},
		&models.Track{},
		&models.OperateLog{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// --- External service clients ---
	gameAPIURL := os.Getenv("GAME_API_URL")
	if gameAPIURL == "" {
		log.Fatal("GAME_API_URL environment variable not set")
	}
	gameAPIToken := os.Getenv("GAME_API_TOKEN")
	if gameAPIToken == "" {
		log.Fatal("GAME_API_TOKEN environment variable not set")
	}
	oracleURL := os.Getenv("ORACLE_URL")
	if oracleURL == "" {
		log.Fatal("ORACLE_URL environment variable not set")
	}
	// The league calendar lives on its own host, separate from the oracle.
	periodAPIURL := os.Getenv("PERIOD_API_URL")
	if periodAPIURL == "" {
		log.Fatal("PERIOD_API_URL environment variable not set")
	}
	periodAPIKey := os.Getenv("PERIOD_API_KEY")

	gameAPI := services.NewGameAPIClient(gameAPIURL, gameAPIToken)
	oracle := services.NewOracleClient(oracleURL)
	periods := services.NewPeriodClient(periodAPIURL, periodAPIKey)

	// --- Services ---
	roundService := services.NewRoundService(db)
	pointService := services.NewPointService(db)
	clanService := services.NewClanService(db, gameAPI)
	resolver := services.NewResolver(oracle, gameAPI)
	trackService := services.NewTrackService(db, roundService, resolver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clanSyncWorker := workers.NewClanSyncWorker(db, gameAPI)
	clanSyncWorker.Start(ctx)

	roundService.StartRoundScheduler(periods)

	handlers.SetupClanRoutes(app, clanService)
	handlers.SetupLeagueRoutes(app, roundService, pointService, trackService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Clan Sync Worker running (hourly)")
	log.Println("✅ Round scheduler running (every 30m)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
