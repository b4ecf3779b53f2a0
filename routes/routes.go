package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mepa-comp/scoring-system/handlers"
	"github.com/mepa-comp/scoring-system/middleware"
)

// SetupRoutes собирает все маршруты приложения. Всё, кроме регистрации и
// входа, требует Bearer-токен; права в рамках события проверяют сервисы.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	tokenHandler *handlers.TokenHandler,
	eventHandler *handlers.EventHandler,
	staffHandler *handlers.StaffHandler,
	playerHandler *handlers.PlayerHandler,
	scoreHandler *handlers.ScoreHandler,
	sumulaHandler *handlers.SumulaHandler,
	resultsHandler *handlers.ResultsHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))

		r.Route("/tokens", func(r chi.Router) {
			r.Post("/", tokenHandler.Create)
			r.Get("/{code}", tokenHandler.GetByCode)
		})

		r.Post("/staff/join", staffHandler.JoinEvent)
		r.Post("/players/join", playerHandler.JoinEvent)

		r.Route("/events", func(r chi.Router) {
			r.Post("/", eventHandler.Create)
			r.Delete("/", eventHandler.Delete)
			r.Get("/", eventHandler.List)

			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", eventHandler.Get)
				r.Put("/", eventHandler.Rename)
				r.Post("/join-code", eventHandler.RegenerateJoinCode)
				r.Put("/logo", eventHandler.UploadLogo)

				r.Route("/staff", func(r chi.Router) {
					r.Get("/", staffHandler.List)
					r.Post("/", staffHandler.Add)
					r.Post("/import", staffHandler.BulkUpsert)
					r.Put("/{staffID}", staffHandler.Update)
				})

				r.Route("/players", func(r chi.Router) {
					r.Get("/", playerHandler.List)
					r.Post("/", playerHandler.Add)
					r.Get("/{playerID}", playerHandler.Get)
					r.Put("/{playerID}", playerHandler.Update)
					r.Delete("/{playerID}", playerHandler.Delete)
					r.Get("/{playerID}/scores", playerHandler.ListScores)
				})

				r.Route("/scores", func(r chi.Router) {
					r.Post("/", scoreHandler.Create)
					r.Post("/recompute", scoreHandler.RecomputeAll)
					r.Put("/{scoreID}", scoreHandler.UpdatePoints)
					r.Delete("/{scoreID}", scoreHandler.Delete)
				})

				// Статический сегмент имеет приоритет над {kind}.
				r.Get("/sumulas/mine", sumulaHandler.ListForPlayer)
				r.Route("/sumulas/{kind}", func(r chi.Router) {
					r.Get("/", sumulaHandler.List)
					r.Post("/", sumulaHandler.Create)
					r.Get("/{sumulaID}", sumulaHandler.Get)
					r.Post("/{sumulaID}/close", sumulaHandler.Close)
					r.Post("/{sumulaID}/referee", sumulaHandler.AddSelfReferee)
					r.Delete("/{sumulaID}", sumulaHandler.Delete)
				})

				r.Route("/results", func(r chi.Router) {
					r.Get("/", resultsHandler.Get)
					r.Post("/calculate-imortals", resultsHandler.CalculateImortals)
					r.Post("/publish", resultsHandler.Publish)
					r.Post("/publish-imortals", resultsHandler.PublishImortals)
					r.Delete("/", resultsHandler.Revoke)
				})
			})
		})
	})
}
