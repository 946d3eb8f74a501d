package handlers

import (
	"clan-league-system/middleware"
	"clan-league-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupClanRoutes(app *fiber.App, clanService *services.ClanService) {
	// Directory
	app.Get("/clans", clanService.GetAllClans)
	app.Post("/clans", clanService.CreateClan)
	app.Put("/clans/:id", clanService.UpdateClan)
	app.Get("/clans/tag/:tag/:is_global?", clanService.GetClanByTag)
	app.Get("/clans/info/:tag", clanService.GetClanInfo)
	app.Post("/clans/search", clanService.SearchClans)
	app.Get("/clans/:id", clanService.GetClan)
	app.Delete("/clans/:id", clanService.DeleteClan)

	// Membership
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/users/me/clans", clanService.GetUserClans)
	secured.Get("/users/:user_id/clans", clanService.GetClansForUser)
	secured.Post("/clan_users", clanService.AddClanUser)
	secured.Delete("/clan_users", clanService.RemoveClanUser)
}
