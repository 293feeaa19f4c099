package internal

import (
	"net/http"

	"cryptogram/internal/controllers"
	"cryptogram/internal/providers"
)

func InitRoutes(gameController *controllers.GameController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/game/custom", http.HandlerFunc(gameController.NewCustom))
	routers.Post("/game/daily", http.HandlerFunc(gameController.NewDaily))
	routers.Post("/game/resume", http.HandlerFunc(gameController.Resume))
	routers.Post("/game/select", http.HandlerFunc(gameController.Select))
	routers.Post("/game/guess", http.HandlerFunc(gameController.Guess))
	routers.Post("/game/hint", http.HandlerFunc(gameController.Hint))
	routers.Post("/game/infinite", http.HandlerFunc(gameController.Infinite))
	routers.Post("/game/reset", http.HandlerFunc(gameController.Reset))
	routers.Post("/game/finalize", http.HandlerFunc(gameController.Finalize))
	routers.Get("/game/state", http.HandlerFunc(gameController.State))
	routers.Get("/game/in-progress", http.HandlerFunc(gameController.InProgress))

	routers.Get("/stats", http.HandlerFunc(gameController.Stats))
	routers.Get("/sync/status", http.HandlerFunc(gameController.SyncStatus))
	routers.Post("/sync/retry", http.HandlerFunc(gameController.SyncRetry))
	routers.Post("/maintenance/dedupe", http.HandlerFunc(gameController.Dedupe))
	return routers
}
