package routes

import (
	"net/http"
	"time"

	_ "github.com/Aksuiekbro/debetter-sub002/docs"
	"github.com/Aksuiekbro/debetter-sub002/handlers"
	"github.com/Aksuiekbro/debetter-sub002/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

const requestTimeout = 30 * time.Second

// Dependencies are the handlers and settings the router is built from.
type Dependencies struct {
	JWTSecret      []byte
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter

	Health      *handlers.HealthHandler
	Tournaments *handlers.TournamentHandler
	Entrants    *handlers.EntrantHandler
	Participant *handlers.ParticipantHandler
	Teams       *handlers.TeamHandler
	Postings    *handlers.PostingHandler
	Evaluations *handlers.EvaluationHandler
	Standings   *handlers.StandingsHandler
	WebSocket   *handlers.WebSocketHandler
}

func SetupRoutes(router chi.Router, d Dependencies) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if d.RateLimiter != nil {
		router.Use(d.RateLimiter.Handler)
	}

	router.Get("/healthz", d.Health.Healthz)
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	authenticate := middleware.Authenticate(d.JWTSecret)
	organizer := middleware.RequireRole(middleware.RoleOrganizer, middleware.RoleAdmin)
	anyRole := middleware.RequireRole(middleware.RoleOrganizer, middleware.RoleAdmin, middleware.RoleJudge)

	// Websocket upgrades are long-lived and stay outside the request timeout.
	router.With(authenticate, anyRole).Get("/ws/tournaments/{tournamentID}", d.WebSocket.ServeWs)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(requestTimeout))
		r.Use(authenticate)

		// Reads are open to every authenticated role.
		r.Group(func(r chi.Router) {
			r.Use(anyRole)

			r.Get("/tournaments", d.Tournaments.ListHandler)
			r.Get("/tournaments/{tournamentID}", d.Tournaments.GetByIDHandler)
			r.Get("/tournaments/{tournamentID}/participants", d.Participant.ListHandler)
			r.Get("/tournaments/{tournamentID}/teams", d.Teams.ListHandler)
			r.Get("/tournaments/{tournamentID}/postings", d.Postings.ListHandler)
			r.Get("/tournaments/{tournamentID}/standings", d.Standings.GetHandler)
			r.Get("/tournaments/{tournamentID}/judges/activity", d.Standings.JudgeActivityHandler)
			r.Get("/tournaments/{tournamentID}/speakers/standings", d.Standings.SpeakerStandingsHandler)

			r.Get("/entrants", d.Entrants.ListHandler)
			r.Get("/entrants/{entrantID}", d.Entrants.GetByIDHandler)

			r.Get("/postings/{postingID}", d.Postings.GetByIDHandler)
			r.Get("/postings/{postingID}/evaluations", d.Evaluations.ListHandler)
			r.Post("/postings/{postingID}/evaluations", d.Evaluations.SubmitHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(organizer)

			r.Post("/tournaments", d.Tournaments.CreateHandler)
			r.Patch("/tournaments/{tournamentID}/status", d.Tournaments.UpdateStatusHandler)
			r.Delete("/tournaments/{tournamentID}", d.Tournaments.DeleteHandler)

			r.Post("/entrants", d.Entrants.CreateHandler)

			r.Post("/tournaments/{tournamentID}/participants", d.Participant.RegisterHandler)
			r.Post("/tournaments/{tournamentID}/teams", d.Teams.CreateHandler)
			r.Post("/tournaments/{tournamentID}/teams/randomize", d.Teams.RandomizeHandler)
			r.Post("/tournaments/{tournamentID}/rounds", d.Postings.GenerateRoundHandler)
			r.Post("/tournaments/{tournamentID}/postings", d.Postings.CreateHandler)
			r.Post("/tournaments/{tournamentID}/postings/batch", d.Postings.CreateBatchHandler)
			r.Post("/tournaments/{tournamentID}/standings/refresh", d.Standings.RefreshHandler)

			r.Patch("/postings/{postingID}", d.Postings.UpdateHandler)
			r.Patch("/postings/{postingID}/status", d.Postings.UpdateStatusHandler)
			r.Post("/postings/{postingID}/ballot", d.Postings.UploadBallotHandler)
			r.Post("/postings/{postingID}/audio", d.Postings.UploadAudioHandler)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"kind":"not_found","message":"the requested resource could not be found"}}` + "\n"))
	})
}
