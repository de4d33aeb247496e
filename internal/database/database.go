// Package database opens the Postgres pool and applies the schema.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS categorias (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		descripcion TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_categorias_nombre ON categorias (lower(nombre))`,

	`CREATE TABLE IF NOT EXISTS productos (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		descripcion TEXT NOT NULL DEFAULT '',
		precio NUMERIC(12,2) NOT NULL CHECK (precio >= 0),
		stock INTEGER NOT NULL CHECK (stock >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_productos_created_at ON productos (created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS producto_imagenes (
		producto_id TEXT NOT NULL REFERENCES productos(id) ON DELETE CASCADE,
		posicion INTEGER NOT NULL,
		url TEXT NOT NULL,
		principal BOOLEAN NOT NULL DEFAULT false,
		PRIMARY KEY (producto_id, posicion)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_producto_imagenes_principal ON producto_imagenes (producto_id) WHERE principal`,

	`CREATE TABLE IF NOT EXISTS producto_categorias (
		producto_id TEXT NOT NULL REFERENCES productos(id) ON DELETE CASCADE,
		categoria_id TEXT NOT NULL REFERENCES categorias(id) ON DELETE CASCADE,
		PRIMARY KEY (producto_id, categoria_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_producto_categorias_categoria ON producto_categorias (categoria_id)`,

	`CREATE TABLE IF NOT EXISTS reservas (
		id TEXT PRIMARY KEY,
		usuario_id TEXT NOT NULL,
		estado TEXT NOT NULL CHECK (estado IN ('pendiente','confirmado','cancelado')),
		total NUMERIC(14,2) NOT NULL,
		expira_en TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservas_usuario ON reservas (usuario_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_reservas_pendientes ON reservas (expira_en) WHERE estado = 'pendiente'`,

	`CREATE TABLE IF NOT EXISTS reserva_productos (
		reserva_id TEXT NOT NULL REFERENCES reservas(id) ON DELETE CASCADE,
		producto_id TEXT NOT NULL REFERENCES productos(id) ON DELETE RESTRICT,
		posicion INTEGER NOT NULL,
		cantidad INTEGER NOT NULL CHECK (cantidad > 0),
		precio_unitario NUMERIC(12,2) NOT NULL,
		PRIMARY KEY (reserva_id, producto_id)
	)`,

	`CREATE TABLE IF NOT EXISTS outbox (
		id BIGSERIAL PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		type TEXT NOT NULL,
		payload JSONB NOT NULL,
		headers JSONB NOT NULL DEFAULT '{}',
		traceparent TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		relay_id TEXT,
		lease_until TIMESTAMPTZ,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox (status, id)`,
}

// Migrate creates every table the service needs. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	return nil
}
