package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/outbox"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/tracing"
)

type Service struct {
	log        *slog.Logger
	repo       ReservaRepository
	defaultTTL time.Duration
	now        func() time.Time
}

func NewService(log *slog.Logger, repo ReservaRepository, defaultTTL time.Duration) *Service {
	if defaultTTL < domain.MinTTL || defaultTTL > domain.MaxTTL {
		defaultTTL = domain.DefaultTTL
	}
	return &Service{
		log:        log,
		repo:       repo,
		defaultTTL: defaultTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

type ItemInput struct {
	ProductoID string
	Cantidad   int
}

// Reservar holds stock for every item until the reservation expires.
func (s *Service) Reservar(ctx context.Context, usuarioID string, items []ItemInput, minutos int) (domain.Reserva, error) {
	if len(items) == 0 {
		return domain.Reserva{}, domain.ErrEmptyItems
	}
	lines := make([]domain.ReservaProducto, 0, len(items))
	for _, it := range items {
		if it.Cantidad <= 0 {
			return domain.Reserva{}, domain.ErrInvalidCantidad.WithDetails(map[string]any{"producto_id": it.ProductoID, "cantidad": it.Cantidad})
		}
		lines = append(lines, domain.ReservaProducto{ProductoID: it.ProductoID, Cantidad: it.Cantidad})
	}
	ttl, err := domain.ResolveTTL(minutos, s.defaultTTL)
	if err != nil {
		return domain.Reserva{}, err
	}

	now := s.now()
	r := domain.Reserva{
		ID:        uuid.NewString(),
		UsuarioID: usuarioID,
		Estado:    domain.EstadoPendiente,
		Items:     domain.MergeItems(lines),
		ExpiraEn:  now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	ev, err := s.event(ctx, domain.EventReservationCreated, r, now)
	if err != nil {
		return domain.Reserva{}, err
	}
	if err := s.repo.Reserve(ctx, &r, ev); err != nil {
		return domain.Reserva{}, fmt.Errorf("reserve: %w", err)
	}
	s.log.Info("stock reserved", "reserva_id", r.ID, "usuario_id", usuarioID, "items", len(r.Items), "expira_en", r.ExpiraEn)
	return r, nil
}

// Liberar cancels a pending reservation and returns its stock.
func (s *Service) Liberar(ctx context.Context, id string) (domain.Reserva, error) {
	r, err := s.repo.Mutate(ctx, id, s.cancel(ctx, domain.EventReservationReleased, false))
	if err != nil {
		return domain.Reserva{}, fmt.Errorf("release %s: %w", id, err)
	}
	s.log.Info("stock released", "reserva_id", id)
	return r, nil
}

func (s *Service) Confirmar(ctx context.Context, id string) (domain.Reserva, error) {
	r, err := s.repo.Mutate(ctx, id, func(r *domain.Reserva) (Change, error) {
		now := s.now()
		if err := r.TransitionTo(domain.EstadoConfirmado, now); err != nil {
			return Change{}, err
		}
		ev, err := s.event(ctx, domain.EventReservationConfirmed, *r, now)
		if err != nil {
			return Change{}, err
		}
		return Change{Event: &ev}, nil
	})
	if err != nil {
		return domain.Reserva{}, fmt.Errorf("confirm %s: %w", id, err)
	}
	s.log.Info("reserva confirmed", "reserva_id", id)
	return r, nil
}

// UpdateEstado applies a PATCH of the estado field.
func (s *Service) UpdateEstado(ctx context.Context, id string, estado domain.Estado) (domain.Reserva, error) {
	switch estado {
	case domain.EstadoConfirmado:
		return s.Confirmar(ctx, id)
	case domain.EstadoCancelado:
		return s.Liberar(ctx, id)
	default:
		return domain.Reserva{}, domain.ErrInvalidEstado.WithDetails(map[string]any{
			"estado":    estado,
			"permitido": []domain.Estado{domain.EstadoConfirmado, domain.EstadoCancelado},
		})
	}
}

// DeleteReserva removes a reservation, returning stock first when it was
// still pending.
func (s *Service) DeleteReserva(ctx context.Context, id string) error {
	_, err := s.repo.Mutate(ctx, id, func(r *domain.Reserva) (Change, error) {
		now := s.now()
		ev, err := s.event(ctx, domain.EventReservationDeleted, *r, now)
		if err != nil {
			return Change{}, err
		}
		return Change{Restock: r.Estado == domain.EstadoPendiente, Delete: true, Event: &ev}, nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	s.log.Info("reserva deleted", "reserva_id", id)
	return nil
}

func (s *Service) GetReserva(ctx context.Context, id string) (domain.Reserva, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListReservas(ctx context.Context, filter domain.Filter) ([]domain.Reserva, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Estado != "" && !filter.Estado.Valid() {
		return nil, domain.ErrInvalidEstado
	}
	rs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list reservas: %w", err)
	}
	if rs == nil {
		rs = []domain.Reserva{}
	}
	return rs, nil
}

// ExpirePending cancels every pending reservation past its expiry and
// returns how many were released.
func (s *Service) ExpirePending(ctx context.Context, batch int) (int, error) {
	ids, err := s.repo.ListExpired(ctx, s.now(), batch)
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}
	released := 0
	for _, id := range ids {
		_, err := s.repo.Mutate(ctx, id, s.cancel(ctx, domain.EventReservationExpired, true))
		switch {
		case err == nil:
			released++
		case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrReservaNotFound), errors.Is(err, errNotExpired):
			// confirmed, released or deleted since it was listed
		default:
			return released, fmt.Errorf("expire %s: %w", id, err)
		}
	}
	return released, nil
}

var errNotExpired = errors.New("reserva not expired")

func (s *Service) cancel(ctx context.Context, eventType string, onlyExpired bool) Mutator {
	return func(r *domain.Reserva) (Change, error) {
		now := s.now()
		if onlyExpired && !r.Expired(now) {
			return Change{}, errNotExpired
		}
		if err := r.TransitionTo(domain.EstadoCancelado, now); err != nil {
			return Change{}, err
		}
		ev, err := s.event(ctx, eventType, *r, now)
		if err != nil {
			return Change{}, err
		}
		return Change{Restock: true, Event: &ev}, nil
	}
}

func (s *Service) event(ctx context.Context, eventType string, r domain.Reserva, at time.Time) (outbox.Event, error) {
	ev, err := outbox.NewEvent(domain.AggregateType, r.ID, eventType, domain.NewReservationEvent(r, at), tracing.Traceparent(ctx))
	if err != nil {
		return outbox.Event{}, fmt.Errorf("build %s event: %w", eventType, err)
	}
	return ev, nil
}
