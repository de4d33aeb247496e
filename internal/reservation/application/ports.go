package application

import (
	"context"
	"time"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/outbox"
)

// Change is what a Mutator asks the repository to persist alongside the
// mutated reservation, inside the same transaction.
type Change struct {
	// Restock returns every line quantity to product stock.
	Restock bool
	// Delete removes the reservation and its lines after restocking.
	Delete bool
	Event  *outbox.Event
}

// Mutator inspects and edits a locked reservation. Returning an error aborts
// the transaction.
type Mutator func(r *domain.Reserva) (Change, error)

type ReservaRepository interface {
	// Reserve decrements stock for every line, snapshots unit prices into r,
	// and inserts r and ev in one transaction. It fails with
	// domain.ErrProductoNotFound or domain.ErrInsufficientStock without
	// touching any stock.
	Reserve(ctx context.Context, r *domain.Reserva, ev outbox.Event) error
	// Mutate locks reservation id, applies fn and persists the result.
	Mutate(ctx context.Context, id string, fn Mutator) (domain.Reserva, error)
	Get(ctx context.Context, id string) (domain.Reserva, error)
	List(ctx context.Context, filter domain.Filter) ([]domain.Reserva, error)
	// ListExpired returns ids of pending reservations with expira_en <= now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
}
