package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"recipebox/auth"
	"recipebox/config"
	"recipebox/db"
	"recipebox/drafts"
	"recipebox/export"
	"recipebox/formstate"
	"recipebox/live"
	"recipebox/logging"
	"recipebox/middleware"
	"recipebox/mq"
	"recipebox/ratelim"
	"recipebox/rdx"
	"recipebox/recipes"
	"recipebox/routes"
	"recipebox/static"
	"recipebox/tags"
)

const startupTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("❌ logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	mongoClient, database, err := db.Connect(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		if err := mongoClient.Disconnect(dctx); err != nil {
			logger.Warn("mongo disconnect", zap.Error(err))
		}
	}()
	if err := db.CreateIndexes(ctx, database); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Drafts.Backend == "redis" || cfg.Live.Feed == "redis" {
		redisClient, err = rdx.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	tagSvc := tags.NewService(db.NewTagStore(database.Collection(db.TagsCollection)), logger)
	if cfg.Seed.GlobalTags {
		n, err := tagSvc.SeedGlobalTags(ctx, tags.DefaultTags)
		if err != nil {
			return fmt.Errorf("seed tags: %w", err)
		}
		logger.Info("global tags seeded", zap.Int("inserted", n))
	}

	recipeColl := database.Collection(db.RecipesCollection)
	var (
		feed     recipes.ChangeFeed
		notifier recipes.Notifier
	)
	switch cfg.Live.Feed {
	case "redis":
		f := mq.NewRecipeFeed(redisClient, logger)
		feed, notifier = f, f
	case "changestream":
		// the change stream sees every write itself
		feed = db.NewRecipeChangeStream(recipeColl)
	}
	recipeSvc := recipes.NewService(db.NewRecipeStore(recipeColl), tagSvc, feed, notifier, logger)

	var persister formstate.Persister
	if cfg.Drafts.Backend == "redis" {
		persister = rdx.NewFormSnapshots(redisClient, cfg.Drafts.KeyPrefix, cfg.Drafts.TTL)
	} else {
		persister = formstate.NewMemoryPersister()
	}

	authenticator, err := middleware.NewAuthenticator(cfg.Auth, logger)
	if err != nil {
		return err
	}

	hub := live.NewHub(recipeSvc, logger)
	go hub.Run()

	router := httprouter.New()
	routes.RoutesWrapper(router, routes.Deps{
		Authenticator:  authenticator,
		RateLimiter:    ratelim.NewRateLimiter(cfg.Limiter.SessionRate, cfg.Limiter.SessionBurst),
		RequestTimeout: cfg.Server.RequestTimeout,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Session:        auth.NewSession(cfg.Auth, logger),
		Tags:           tags.NewHandlers(tagSvc),
		Recipes:        recipes.NewHandlers(recipeSvc),
		Export:         export.NewHandlers(recipeSvc, cfg.Server.PublicURL, logger),
		Drafts:         drafts.NewHandlers(persister, recipeSvc, logger, cfg.Drafts.Timeout),
		Hub:            hub,
		Static:         static.New(cfg.Static.Dir, logger),
	})

	gate := middleware.Gate(middleware.GateConfig{
		CookieName:     cfg.Auth.CookieName,
		PublicPaths:    append([]string{"/health"}, cfg.Auth.PublicPaths...),
		PublicPrefixes: static.PublicPrefixes,
	})

	if cfg.CORS.AllowsAnyOrigin() {
		logger.Warn("CORS_ALLOWED_ORIGINS contains *: any site can make credentialed requests and open the live feed")
	}
	// CORS → security headers → logging → gate → router; preflights never
	// reach the gate
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler
	handler := corsHandler(middleware.SecurityHeaders(middleware.RequestLogger(logger)(gate(router))))

	server := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	// websockets are hijacked, Shutdown does not wait for them
	hubStopped := make(chan struct{})
	server.RegisterOnShutdown(func() {
		logger.Info("stopping live hub")
		hub.Stop()
		close(hubStopped)
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		hub.Stop()
		return fmt.Errorf("listen: %w", err)
	case <-sigCtx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	select {
	case <-hubStopped:
	case <-shutdownCtx.Done():
		logger.Warn("live hub did not stop in time")
	}

	logger.Info("server stopped cleanly")
	return nil
}
