package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	catalogapp "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/application"
	catalogHTTP "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/infrastructure/http"
	catalogDB "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/infrastructure/postgres"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/config"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/database"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/memory"
	reservationapp "github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/application"
	reservationHTTP "github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/infrastructure/http"
	reservationDB "github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/infrastructure/postgres"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/seed"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/server"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/auth"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/idempotency"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/logging"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/outbox"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/shutdown"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/tracing"
)

const serviceName = "inventory-service"

type stores struct {
	productos  catalogapp.ProductoRepository
	categorias catalogapp.CategoriaRepository
	reservas   reservationapp.ReservaRepository
	outbox     outbox.Store
	health     server.HealthCheck
	close      func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config invalid", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel).With("service", serviceName)
	if err := run(cfg, log); err != nil {
		log.Error("service failed", "err", err)
		os.Exit(1)
	}
	log.Info("inventory-service shutdown")
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	tp, err := tracing.Init(ctx, serviceName, cfg.OTELEndpoint, log)
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = tp.Shutdown(shutdownCtx)
	}()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	idem, closeIdem, err := openIdempotency(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeIdem()

	// Outbox relay
	var producer outbox.Producer = outbox.DiscardProducer{}
	if len(cfg.KafkaAddrs) > 0 {
		writer := outbox.NewKafkaWriter(cfg.KafkaAddrs)
		defer func() { _ = writer.Close() }()
		producer = writer
	} else {
		log.Warn("KAFKA_ADDR not set, outbox events are drained without publishing")
	}
	dispatch := outbox.NewDispatcher(log, producer, cfg.OutboxTopic)
	relay := outbox.NewRelay(log, st.outbox, dispatch, serviceName+"-relay")
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped", "err", err)
		}
	}()

	authn, err := newAuthenticator(ctx, cfg, log)
	if err != nil {
		return err
	}

	catalogSvc := catalogapp.NewService(st.productos, st.categorias)
	reservaSvc := reservationapp.NewService(log, st.reservas, cfg.ReservationTTL)

	if cfg.Seed {
		if err := seed.Run(ctx, log, catalogSvc); err != nil {
			return err
		}
	}

	sweeper := reservationapp.NewSweeper(log, reservaSvc, cfg.SweepInterval)
	go func() {
		if err := sweeper.Run(ctx); err != nil {
			log.Error("sweeper stopped", "err", err)
		}
	}()

	handler := server.NewHandler(log, st.health,
		catalogHTTP.NewHandler(log, catalogSvc, authn),
		reservationHTTP.NewHandler(log, reservaSvc, authn, idem),
	)
	return server.New(log, cfg.HTTPAddr, handler).Run(ctx)
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store, data is lost on restart")
		m := memory.NewStore()
		return stores{
			productos:  m.Productos(),
			categorias: m.Categorias(),
			reservas:   m.Reservas(),
			outbox:     m.Outbox(),
			close:      func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, cfg.PGURL)
	if err != nil {
		return stores{}, fmt.Errorf("pg connect: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return stores{}, err
	}
	return stores{
		productos:  catalogDB.NewProductoRepository(log, pool),
		categorias: catalogDB.NewCategoriaRepository(log, pool),
		reservas:   reservationDB.NewRepository(log, pool),
		outbox:     reservationDB.NewOutboxStore(log, pool),
		health:     pool.Ping,
		close:      pool.Close,
	}, nil
}

func openIdempotency(ctx context.Context, cfg config.Config, log *slog.Logger) (idempotency.Store, func(), error) {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set, idempotency keys are kept in process")
		return idempotency.NewMemoryStore(10_000, cfg.IdempotencyTTL), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL), func() { _ = rdb.Close() }, nil
}

func newAuthenticator(ctx context.Context, cfg config.Config, log *slog.Logger) (*auth.Authenticator, error) {
	if cfg.AuthDisabled {
		log.Warn("AUTH_DISABLED is set, every request runs as an anonymous admin")
		return auth.NewAuthenticator(log, auth.Config{Disabled: true}), nil
	}
	keyfunc, err := auth.NewKeycloakKeyfunc(ctx, cfg.KeycloakURL, cfg.KeycloakRealm)
	if err != nil {
		return nil, err
	}
	return auth.NewAuthenticator(log, auth.Config{
		Issuer:   auth.KeycloakIssuer(cfg.KeycloakURL, cfg.KeycloakRealm),
		ClientID: cfg.KeycloakClientID,
		Keyfunc:  keyfunc,
	}), nil
}
