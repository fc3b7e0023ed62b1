package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/app"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/config"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/api"
	adminapi "github.com/Nixie-Tech-LLC/workoutboard/internal/http/api/admin/endpoints"
	tvapi "github.com/Nixie-Tech-LLC/workoutboard/internal/http/api/tv/endpoints"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/middleware"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, cfg *config.Config, a *app.App) {
	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
			"If-None-Match",
			middleware.HeaderAPIKey,
			middleware.HeaderActor,
		},
		ExposeHeaders: []string{
			"Content-Length",
			"ETag",
			"X-Resolution-Layer",
			"X-Resolution-Source",
			"X-Request-ID",
		},
		AllowCredentials: false,
	}))

	authenticator := middleware.NewAuthenticator(cfg.APIKey, cfg.APIKeyHash, cfg.JWTSecret)

	admin := adminapi.Deps{
		Schedule:  a.Schedule,
		Overrides: a.Overrides,
		Rotation:  a.Rotation,
		Audit:     a.Audit,
		Store:     a.Store,
		Now:       a.Now,
	}
	api.MountGroup(r, api.GroupConfig{
		Prefix:        "/api/schedule",
		Auth:          true,
		Authenticator: authenticator,
	},
		adminapi.ScheduleModule(admin),
		adminapi.OverrideModule(admin),
		adminapi.StatusModule(admin),
	)

	tv := tvapi.Deps{
		Engine:          a.Engine,
		Schedule:        a.Schedule,
		Store:           a.Store,
		Hub:             a.Hub,
		RefreshInterval: cfg.TVRefreshInterval,
		Version:         version,
		Now:             a.Now,
	}
	api.MountGroup(r, api.GroupConfig{
		Prefix: "/tv",
	},
		tvapi.DisplayModule(tv),
	)
	api.MountGroup(r, api.GroupConfig{
		Prefix: "",
	},
		tvapi.HealthModule(tv),
	)
}
