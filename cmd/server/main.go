// Package main initializes and starts the PicTag API server, setting up
// configuration, logging, the database, repositories, external providers,
// services, handlers and optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/ai"
	"github.com/atinyakov/PicTag/internal/auth"
	"github.com/atinyakov/PicTag/internal/certgen"
	"github.com/atinyakov/PicTag/internal/config"
	"github.com/atinyakov/PicTag/internal/db"
	"github.com/atinyakov/PicTag/internal/logger"
	"github.com/atinyakov/PicTag/internal/mailer"
	"github.com/atinyakov/PicTag/internal/middleware"
	"github.com/atinyakov/PicTag/internal/oauth"
	"github.com/atinyakov/PicTag/internal/objectstore"
	"github.com/atinyakov/PicTag/internal/repository"
	"github.com/atinyakov/PicTag/internal/server/handler/http"
	"github.com/atinyakov/PicTag/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, file and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection and schema.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	// Purge dead refresh and reset tokens.
	db.StartTokenCleaner(ctx, postgresDB,
		time.Hour,      // interval
		7*24*time.Hour, // retention
		zapLogger,
	)

	// Load or create the ID token signing key.
	signingKey, err := certgen.LoadOrCreateSigningKey(options.Auth.SigningKeyPath)
	if err != nil {
		zapLogger.Fatal("cannot load signing key", zap.Error(err))
	}
	jwtManager := auth.NewJWTManager(signingKey, options.Auth.Issuer, options.Auth.Audience, options.Auth.TokenTTL)

	// Initialize repositories.
	userRepo := repository.NewPostgresUserRepository(postgresDB)
	tokenRepo := repository.NewPostgresTokenRepository(postgresDB)
	analysisRepo := repository.NewPostgresAnalysisRepository(postgresDB)
	generatedRepo := repository.NewPostgresGeneratedImageRepository(postgresDB)

	// External providers. Interfaces stay nil when a provider is not configured.
	var resetMailer service.ResetMailer = mailer.NewLog(zapLogger)
	if options.SMTP.Addr != "" {
		resetMailer = mailer.NewSMTP(options.SMTP.Addr, options.SMTP.Username, options.SMTP.Password, options.SMTP.From)
	}

	var provider service.ImageProvider
	if options.OpenAI.Configured() {
		provider = ai.NewClient(ai.Config{
			APIKey:           options.OpenAI.APIKey,
			BaseURL:          options.OpenAI.BaseURL,
			VisionModel:      options.OpenAI.VisionModel,
			ImageModel:       options.OpenAI.ImageModel,
			AzureKey:         options.OpenAI.AzureKey,
			AzureEndpoint:    options.OpenAI.AzureEndpoint,
			AzureAPIVersion:  options.OpenAI.AzureAPIVersion,
			DalleDeployment:  options.OpenAI.DalleDeployment,
			VisionDeployment: options.OpenAI.VisionDeployment,
		})
	} else {
		zapLogger.Warn("image provider keys not configured")
	}

	var uploads service.UploadStore
	if options.Storage.Endpoint != "" {
		store, err := objectstore.New(ctx, objectstore.Config{
			Endpoint:   options.Storage.Endpoint,
			AccessKey:  options.Storage.AccessKey,
			SecretKey:  options.Storage.SecretKey,
			Bucket:     options.Storage.Bucket,
			Region:     options.Storage.Region,
			UseSSL:     options.Storage.UseSSL,
			PresignTTL: options.Storage.PresignTTL,
		})
		if err != nil {
			zapLogger.Warn("upload archive disabled", zap.Error(err))
		} else {
			uploads = store
		}
	}

	google := oauth.NewGoogleVerifier(options.Google.ClientID, options.Google.ClientSecret, options.Google.RedirectURI, zapLogger)

	// Initialize business-logic services.
	authService := service.NewAuthService(userRepo, tokenRepo, jwtManager, google, resetMailer, service.AuthConfig{
		RefreshTTL:  options.Auth.RefreshTTL,
		ResetTTL:    options.Auth.ResetTTL,
		ResetURL:    options.Auth.ResetURL,
		AllowSignUp: options.Auth.AllowSignUp,
	}, zapLogger)
	recordService := service.NewRecordService(analysisRepo, generatedRepo)
	imageService := service.NewImageService(provider, uploads, zapLogger)

	// Create HTTP handlers.
	authHandler := &http.AuthHandler{AuthService: authService, Log: zapLogger}
	recordHandler := &http.RecordHandler{Records: recordService, Log: zapLogger}
	imageHandler := &http.ImageHandler{Images: imageService, Verifier: jwtManager, Log: zapLogger}
	configHandler := &http.ConfigHandler{Report: options.Report}

	routerOpts := http.RouterOptions{
		AllowedOrigins: options.AllowedOrigins,
		Verifier:       jwtManager,
	}
	// A zero limit turns auth rate limiting off.
	if options.Auth.RateLimit != 0 {
		limiter, err := middleware.NewClientLimiter(options.Auth.RateLimit)
		if err != nil {
			zapLogger.Fatal("invalid auth rate limit", zap.Error(err))
		}
		routerOpts.AuthLimit = limiter.Handler
	}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, recordHandler, imageHandler, configHandler, routerOpts, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	if options.TLSCert != "" && options.TLSKey != "" {
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}
