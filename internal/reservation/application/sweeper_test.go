package application_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/application"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
)

func TestSweeperReleasesExpired(t *testing.T) {
	f := newFixture(t)
	p := f.producto(t, "A", "1.00", 3)

	r, err := f.svc.Reservar(context.Background(), "u", []application.ItemInput{{ProductoID: p.ID, Cantidad: 3}}, 15)
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)

	sweeper := application.NewSweeper(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, err := f.svc.GetReserva(context.Background(), r.ID)
		return err == nil && got.Estado == domain.EstadoCancelado
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 3, f.stock(t, p.ID))
}
