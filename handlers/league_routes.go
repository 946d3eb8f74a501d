package handlers

import (
	"clan-league-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeagueRoutes(app *fiber.App, roundService *services.RoundService,
	pointService *services.PointService, trackService *services.TrackService) {

	// Rounds
	app.Get("/rounds", roundService.GetAllRounds)
	app.Get("/rounds/last", roundService.GetLastRound)
	app.Post("/rounds", roundService.CreateRound)

	// Point ledger
	app.Get("/clan_points/:id", pointService.GetClanPointEndpoint)
	app.Put("/clan_points", pointService.GrantReward)
	app.Get("/operate_logs", pointService.GetOperateLogs)

	// Outcome records
	app.Get("/tracks", trackService.GetAllTracks)
	app.Post("/tracks", trackService.RegisterOutcome)
	app.Get("/tracks/clan/:id", trackService.GetClanTracks)
	app.Post("/tracks/:id/reverse", trackService.ReverseOutcome)
}
