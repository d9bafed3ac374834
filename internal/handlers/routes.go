package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/crowdpick/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Routes builds the HTTP surface. allowedOrigins empty allows any http(s) origin.
func Routes(srv *SessionServer, logger logrus.FieldLogger, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"https://*", "http://*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(middleware.LogMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/user/create", CreateUserHandler)
	r.Post("/user/login", LoginHandler)
	r.Post("/user/claim", ClaimGuestHandler)
	r.Get("/profile", ProfileHandler)

	r.Get("/panels", ListPanelsHandler(srv))

	r.Route("/session", func(r chi.Router) {
		r.Post("/create", CreateSessionHandler(srv))
		r.Get("/list", ListSessionsHandler(srv))
		r.Get("/ws/{id}", SessionWSHandler(logger, srv))
	})
	return r
}
