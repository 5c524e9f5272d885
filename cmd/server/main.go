package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-marketplace/internal/config"
	"github.com/iliyamo/ticket-marketplace/internal/database"
	"github.com/iliyamo/ticket-marketplace/internal/handler"
	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/queue"
	"github.com/iliyamo/ticket-marketplace/internal/repository"
	"github.com/iliyamo/ticket-marketplace/internal/repository/memstore"
	"github.com/iliyamo/ticket-marketplace/internal/router"
	"github.com/iliyamo/ticket-marketplace/internal/service"
	"github.com/iliyamo/ticket-marketplace/internal/service/ports"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ticket-marketplace:", err)
		os.Exit(1)
	}
}

type stores struct {
	store  ports.Store
	users  ports.Users
	tokens ports.Tokens
	close  func() error
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn("using in-memory store; data is lost on restart")
		m := memstore.New()
		return stores{store: m, users: m, tokens: m, close: func() error { return nil }}, nil
	}
	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		MaxOpenConns: cfg.DBMaxOpen,
	})
	if err != nil {
		return stores{}, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return stores{}, err
	}
	return stores{
		store:  repository.NewStore(db),
		users:  repository.NewUserRepo(db),
		tokens: repository.NewTokenRepo(db),
		close:  db.Close,
	}, nil
}

func run() error {
	// a missing .env is fine; the environment may be set by the runtime
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := config.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.close()

	var rdb *redis.Client
	if cfg.Cache.Enabled || cfg.RateLimit.Enabled {
		if rdb, err = config.NewRedisClient(ctx, cfg.Redis); err != nil {
			log.Warn("redis unavailable; cache and rate limiting disabled", "err", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	var pub service.EventPublisher
	if cfg.AMQPURL != "" {
		pub = queue.NewPublisher(cfg.AMQPURL)
		consumer := &queue.AuditConsumer{URL: cfg.AMQPURL, Dir: cfg.AuditDir, Log: log.With("component", "audit")}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", "err", err)
			}
		}()
	} else {
		log.Info("AMQP_URL not set; domain events are not published")
	}

	inv := service.NewInventory(st.store)
	tickets := service.NewTickets(st.store, log)
	ledger := service.NewLedger(st.store)
	events := service.NewEventService(st.store, inv, log)
	sales := service.NewSaleWorkflow(st.store, inv, tickets, ledger, pub, log)
	resale := service.NewResaleWorkflow(st.store, tickets, ledger, pub, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, st.users, st.tokens, log), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewPublicHandler(events, inv, resale, log),
		middleware.NewRedisCache(cfg.Cache, rdb, log))
	router.RegisterBuyer(e, handler.NewBuyerHandler(sales, resale, tickets, ledger, log), cfg.JWTSecret,
		middleware.NewTokenBucket(cfg.RateLimit, rdb, log))
	router.RegisterOrganizer(e, handler.NewOrganizerHandler(events, tickets, log), cfg.JWTSecret)

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
