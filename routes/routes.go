package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pelada-app/pelada-system/handlers"
	"github.com/pelada-app/pelada-system/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

func SetupRoutes(
	router *chi.Mux,
	auth *middleware.Authenticator,
	authHandler *handlers.AuthHandler,
	eventHandler *handlers.EventHandler,
	playerHandler *handlers.PlayerHandler,
	webSocketHandler *handlers.WebSocketHandler,
	allowedOrigins []string,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Route("/events", func(r chi.Router) {
		// Public: anyone with the link can look at an event and join
		// its roster.
		r.Get("/", eventHandler.List)
		r.Get("/{eventID}", eventHandler.Get)
		r.Get("/slug/{slug}", eventHandler.GetBySlug)
		r.Post("/{eventID}/players", playerHandler.Add)
		r.Patch("/{eventID}/players/{playerID}/position", playerHandler.UpdatePosition)

		// Creator-only mutations.
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/", eventHandler.Create)
			r.Patch("/{eventID}", eventHandler.Update)
			r.Delete("/{eventID}", eventHandler.Delete)
			r.Post("/{eventID}/cover", eventHandler.UploadCover)
			r.Delete("/{eventID}/players/{playerID}", playerHandler.Remove)
		})
	})

	router.Get("/ws/events/{eventID}", webSocketHandler.ServeWs)

	router.Get("/swagger/*", httpSwagger.Handler())
}
