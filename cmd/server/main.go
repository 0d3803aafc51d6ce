package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // Loads .env files into the environment
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/studiofit/class-booking/internal/booking"    // Booking engine
	"github.com/studiofit/class-booking/internal/clock"      // Time source
	"github.com/studiofit/class-booking/internal/config"     // Internal config loader
	"github.com/studiofit/class-booking/internal/database"   // MySQL connector
	"github.com/studiofit/class-booking/internal/handler"    // HTTP handlers
	"github.com/studiofit/class-booking/internal/middleware" // Rate limiting middleware
	"github.com/studiofit/class-booking/internal/queue"      // Billing event consumer
	"github.com/studiofit/class-booking/internal/repository" // Data access layer
	"github.com/studiofit/class-booking/internal/router"     // Route registration
)

func main() {
	_ = godotenv.Load() // Load .env if present; real env vars win
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Repositories and the engine store share one database handle.
	store := repository.NewStore(db)
	members := repository.NewMemberRepo(db)
	tokens := repository.NewTokenRepo(db)
	sessions := repository.NewSessionRepo(db)
	subs := repository.NewSubscriptionRepo(db)
	packs := repository.NewClassPackRepo(db)
	occupancy := repository.NewOccupancyRepo(db)

	engine := booking.NewOrchestrator(store, clock.NewSystem())

	authH := handler.NewAuthHandler(cfg, members, tokens)
	bookingH := handler.NewBookingHandler(engine, sessions, occupancy, store)
	entitlementH := handler.NewEntitlementHandler(subs, packs)
	staffH := handler.NewStaffHandler(sessions, occupancy)

	e := echo.New()

	// Distributed rate limiting; degrades to a no-op when Redis is down.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting disabled")
	}
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterMember(e, bookingH, entitlementH, cfg.JWTSecret)
	router.RegisterSchedule(e, bookingH, cfg.JWTSecret)
	router.RegisterStaff(e, staffH, cfg.JWTSecret)

	// Billing events (payment confirmations, accepted cancellations)
	// arrive over RabbitMQ; the consumer reconnects on its own.
	go func() {
		if err := queue.StartBillingConsumer(subs, packs); err != nil {
			log.Printf("billing consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
