package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/application"
	reservation "github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/outbox"
)

func seedProducto(t *testing.T, s *Store, id string, stock int) {
	t.Helper()
	require.NoError(t, s.Productos().Create(context.Background(), catalog.Producto{
		ID: id, Nombre: id, Precio: decimal.NewFromInt(3), Stock: stock,
	}))
}

func newEvent(t *testing.T, id string) outbox.Event {
	t.Helper()
	ev, err := outbox.NewEvent(reservation.AggregateType, id, reservation.EventReservationCreated, map[string]string{"id": id}, "")
	require.NoError(t, err)
	return ev
}

func TestReserveSnapshotsPrice(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedProducto(t, s, "p1", 5)

	r := reservation.Reserva{ID: "r1", Estado: reservation.EstadoPendiente, Items: []reservation.ReservaProducto{{ProductoID: "p1", Cantidad: 2}}}
	require.NoError(t, s.Reservas().Reserve(ctx, &r, newEvent(t, "r1")))
	assert.True(t, decimal.NewFromInt(3).Equal(r.Items[0].PrecioUnitario))
	assert.True(t, decimal.NewFromInt(6).Equal(r.Total))

	// later price changes do not touch the reservation
	p, err := s.Productos().Update(ctx, "p1", func(p *catalog.Producto) error {
		p.Precio = decimal.NewFromInt(100)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	got, err := s.Reservas().Get(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(6).Equal(got.Total))

	assert.ErrorIs(t, s.Productos().Delete(ctx, "p1"), catalog.ErrProductoInUse)
}

func TestProductoUpdateRejectsUnknownCategoria(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedProducto(t, s, "p1", 5)

	_, err := s.Productos().Update(ctx, "p1", func(p *catalog.Producto) error {
		p.Nombre = "renamed"
		p.Categorias = []string{"gone"}
		return nil
	})
	require.ErrorIs(t, err, catalog.ErrUnknownCategorias)

	p, err := s.Productos().Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.Nombre)
}

func TestMutateErrorLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedProducto(t, s, "p1", 5)
	r := reservation.Reserva{ID: "r1", Estado: reservation.EstadoPendiente, Items: []reservation.ReservaProducto{{ProductoID: "p1", Cantidad: 2}}}
	require.NoError(t, s.Reservas().Reserve(ctx, &r, newEvent(t, "r1")))

	_, err := s.Reservas().Mutate(ctx, "r1", func(r *reservation.Reserva) (application.Change, error) {
		r.Estado = reservation.EstadoCancelado
		return application.Change{}, reservation.ErrInvalidTransition
	})
	require.ErrorIs(t, err, reservation.ErrInvalidTransition)

	got, err := s.Reservas().Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, reservation.EstadoPendiente, got.Estado)

	_, err = s.Reservas().Mutate(ctx, "missing", nil)
	assert.ErrorIs(t, err, reservation.ErrReservaNotFound)
}

func TestListExpired(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedProducto(t, s, "p1", 5)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, exp := range []time.Duration{-time.Minute, 0, time.Minute} {
		r := reservation.Reserva{
			ID:       string(rune('a' + i)),
			Estado:   reservation.EstadoPendiente,
			ExpiraEn: now.Add(exp),
			Items:    []reservation.ReservaProducto{{ProductoID: "p1", Cantidad: 1}},
		}
		require.NoError(t, s.Reservas().Reserve(ctx, &r, newEvent(t, r.ID)))
	}

	ids, err := s.Reservas().ListExpired(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	ids, err = s.Reservas().ListExpired(ctx, now, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func TestOutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedProducto(t, s, "p1", 5)
	for _, id := range []string{"r1", "r2"} {
		r := reservation.Reserva{ID: id, Items: []reservation.ReservaProducto{{ProductoID: "p1", Cantidad: 1}}}
		require.NoError(t, s.Reservas().Reserve(ctx, &r, newEvent(t, id)))
	}
	ob := s.Outbox()

	batch, err := ob.LockBatch(ctx, "relay-1", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(1), batch[0].ID)
	assert.Equal(t, "relay-1", batch[0].RelayID)

	again, err := ob.LockBatch(ctx, "relay-1", 10, time.Second)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, ob.MarkSent(ctx, []int64{1}))
	for i := 0; i < outbox.MaxAttempts; i++ {
		require.NoError(t, ob.MarkFailed(ctx, 2, "broker down"))
	}

	events := ob.Events()
	require.Len(t, events, 1)
	assert.Equal(t, int64(2), events[0].ID)
	assert.Equal(t, outbox.StatusFailed, events[0].Status)
	assert.Equal(t, outbox.MaxAttempts, events[0].RetryCount)
	require.NotNil(t, events[0].LastError)
	assert.Equal(t, "broker down", *events[0].LastError)
}

func TestOutboxDropsSentEvents(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.mu.Lock()
	for _, id := range []string{"r1", "r2", "r3"} {
		s.appendEvent(newEvent(t, id))
	}
	s.mu.Unlock()
	ob := s.Outbox()

	batch, err := ob.LockBatch(ctx, "relay-1", 2, time.Second)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.NoError(t, ob.MarkSent(ctx, []int64{batch[0].ID, batch[1].ID}))

	events := ob.Events()
	require.Len(t, events, 1)
	assert.Equal(t, int64(3), events[0].ID)
	assert.Equal(t, outbox.StatusPending, events[0].Status)

	batch, err = ob.LockBatch(ctx, "relay-1", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.NoError(t, ob.MarkSent(ctx, []int64{3}))
	assert.Empty(t, ob.Events())
}

func TestOutboxRetryReturnsToPending(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.mu.Lock()
	s.appendEvent(newEvent(t, "r1"))
	s.mu.Unlock()
	ob := s.Outbox()

	_, err := ob.LockBatch(ctx, "relay-1", 10, time.Second)
	require.NoError(t, err)
	require.NoError(t, ob.MarkFailed(ctx, 1, "timeout"))

	batch, err := ob.LockBatch(ctx, "relay-1", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 1, batch[0].RetryCount)
}
