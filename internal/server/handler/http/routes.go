package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/middleware"
)

// RouterOptions carries the cross-cutting pieces of the router.
type RouterOptions struct {
	// AllowedOrigins lists CORS origins; empty allows any.
	AllowedOrigins []string
	// Verifier validates bearer credentials on protected routes.
	Verifier middleware.Verifier
	// AuthLimit rate-limits the identity routes when set.
	AuthLimit func(http.Handler) http.Handler
}

// NewRouter constructs and returns an HTTP handler that serves the PicTag
// API.
//
// Routes:
//
//	GET    /health                       → liveness probe
//	POST   /api/auth/signup|signin       → authHandler (rate limited)
//	POST   /api/auth/refresh|signout     → authHandler (rate limited)
//	POST   /api/auth/reset[/confirm]     → authHandler (rate limited)
//	GET    /api/auth/oauth/google/url    → authHandler.GoogleURL
//	POST   /api/auth/oauth/google        → authHandler.GoogleSignIn
//	GET    /api/analyses                 → recordHandler (BearerAuth)
//	POST   /api/analyses                 → recordHandler (BearerAuth)
//	GET    /api/analyses/{id}            → recordHandler (BearerAuth)
//	DELETE /api/analyses/{id}            → recordHandler (BearerAuth)
//	POST   /api/generated-images         → recordHandler (BearerAuth)
//	POST   /api/AnalyzeImage             → imageHandler.AnalyzeImage
//	POST   /api/GenerateImage            → imageHandler.GenerateImage
//	GET    /api/TestConfig               → configHandler.TestConfig
//
// Middleware chain (applied in order):
//  1. RequestID, RealIP, Recoverer
//  2. WithRequestLogging(logger)
//  3. CORS
func NewRouter(
	authHandler *AuthHandler,
	recordHandler *RecordHandler,
	imageHandler *ImageHandler,
	configHandler *ConfigHandler,
	opts RouterOptions,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if opts.AuthLimit != nil {
				r.Use(opts.AuthLimit)
			}
			r.Get("/oauth/google/url", authHandler.GoogleURL)

			r.Group(func(r chi.Router) {
				// Only allow requests with Content-Type: application/json
				r.Use(chiMiddleware.AllowContentType("application/json"))
				r.Post("/signup", authHandler.SignUp)
				r.Post("/signin", authHandler.SignIn)
				r.Post("/refresh", authHandler.Refresh)
				r.Post("/signout", authHandler.SignOut)
				r.Post("/reset", authHandler.SendPasswordReset)
				r.Post("/reset/confirm", authHandler.ConfirmPasswordReset)
				r.Post("/oauth/google", authHandler.GoogleSignIn)
			})
		})

		// Protected group: requires a valid bearer credential
		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(opts.Verifier))
			r.Get("/analyses", recordHandler.ListAnalyses)
			r.Get("/analyses/{id}", recordHandler.GetAnalysis)
			r.Delete("/analyses/{id}", recordHandler.DeleteAnalysis)

			r.Group(func(r chi.Router) {
				r.Use(chiMiddleware.AllowContentType("application/json"))
				r.Post("/analyses", recordHandler.CreateAnalysis)
				r.Post("/generated-images", recordHandler.CreateGeneratedImage)
			})
		})

		r.Post("/AnalyzeImage", imageHandler.AnalyzeImage)
		r.Post("/GenerateImage", imageHandler.GenerateImage)
		r.Get("/TestConfig", configHandler.TestConfig)
	})

	return r
}
