package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/matzeds/cookbook/common"
	"github.com/matzeds/cookbook/handlers"
)

type Health struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

func makeRouter(api *handlers.API) http.Handler {
	r := chi.NewRouter()

	// CORS is locked down for credentials
	uiOrigin := strings.TrimSpace(common.Env("COOKBOOK_UI_ORIGIN", ""))
	allowedOrigins := []string{}
	if uiOrigin != "" {
		allowedOrigins = append(allowedOrigins, uiOrigin)
	}
	// dev helpers, off in production deployments
	if common.EnvBool("COOKBOOK_DEV_CORS", "true") {
		allowedOrigins = append(allowedOrigins,
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins, // no "*"
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           600,
	}))

	r.Route("/api", func(mux chi.Router) {
		mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			common.RespondJSON(w, Health{Status: "ok", StartedAt: startedAt})
		})
		api.Routes(mux)
	})

	return r
}
