package main // Entry point package

import (
	"context"
	"errors"
	"log" // Logging library
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4" // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/pmb-exam-scheduling/internal/config"
	"github.com/iliyamo/pmb-exam-scheduling/internal/database"
	"github.com/iliyamo/pmb-exam-scheduling/internal/handler"
	"github.com/iliyamo/pmb-exam-scheduling/internal/middleware"
	"github.com/iliyamo/pmb-exam-scheduling/internal/queue"
	"github.com/iliyamo/pmb-exam-scheduling/internal/repository"
	"github.com/iliyamo/pmb-exam-scheduling/internal/reservation"
	"github.com/iliyamo/pmb-exam-scheduling/internal/router"
	queue_publisher "github.com/iliyamo/pmb-exam-scheduling/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env: .env not loaded: %v", err)
	}
	cfg := config.Load() // Load environment config
	qcfg := config.LoadQueueConfig()

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("db: migrate: %v", err)
		}
		if err := database.Seed(ctx, db); err != nil {
			log.Fatalf("db: seed: %v", err)
		}
	}

	users := repository.NewUserRepo(db)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost)
		if err != nil {
			log.Fatalf("auth: bootstrap admin: %v", err)
		}
		if created {
			log.Printf("auth: created administrator %s", cfg.AdminEmail)
		}
	}

	tokens := repository.NewTokenRepo(db)
	slots := repository.NewSlotRepo(db)
	applicants := repository.NewApplicantRepo(db)
	periods := repository.NewPeriodRepo(db)
	sessions := repository.NewSessionRepo(db)
	rooms := repository.NewRoomRepo(db)

	publisher := queue_publisher.NewSchedulePublisher(qcfg, applicants)
	defer publisher.Close()

	rcfg := config.LoadReservationConfig()
	engine := reservation.NewEngine(
		repository.NewReservationStore(db, slots, applicants),
		repository.NewCalendar(periods, cfg.Location),
		reservation.Options{MaxAttempts: rcfg.MaxAttempts, RetryBackoff: rcfg.RetryBackoff, Publisher: publisher},
	)

	if qcfg.Consumer {
		var notifier queue.Notifier
		if g := queue.NewGOWA(qcfg); g != nil {
			notifier = g
		}
		go func() {
			if err := queue.NewConsumer(qcfg, notifier).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("schedule-consumer: stopped: %v", err)
			}
		}()
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, db, users, tokens, applicants, periods), cfg.JWTSecret)
	router.RegisterApplicant(e,
		handler.NewScheduleHandler(engine, applicants),
		cfg.JWTSecret,
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	)
	router.RegisterAdmin(e,
		handler.NewAdminSlotHandler(slots, engine),
		handler.NewAdminReferenceHandler(periods, sessions, rooms),
		handler.NewAdminApplicantHandler(applicants, periods, slots),
		cfg.JWTSecret,
	)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
