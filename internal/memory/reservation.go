package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/application"
	reservation "github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/outbox"
)

type ReservaRepository struct{ s *Store }

func (r *ReservaRepository) Reserve(_ context.Context, res *reservation.Reserva, ev outbox.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, it := range res.Items {
		p, ok := r.s.productos[it.ProductoID]
		if !ok {
			return reservation.ErrProductoNotFound.WithDetails(map[string]string{"producto_id": it.ProductoID})
		}
		if p.Stock < it.Cantidad {
			return reservation.ErrInsufficientStock.WithDetails(reservation.StockShortage{
				ProductoID: it.ProductoID,
				Solicitado: it.Cantidad,
				Disponible: p.Stock,
			})
		}
	}
	for i, it := range res.Items {
		p := r.s.productos[it.ProductoID]
		p.Stock -= it.Cantidad
		p.UpdatedAt = res.CreatedAt
		r.s.productos[it.ProductoID] = p
		res.Items[i].PrecioUnitario = p.Precio
	}
	res.ComputeTotal()
	r.s.reservas[res.ID] = cloneReserva(*res)
	r.s.appendEvent(ev)
	return nil
}

func (r *ReservaRepository) Mutate(_ context.Context, id string, fn application.Mutator) (reservation.Reserva, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.reservas[id]
	if !ok {
		return reservation.Reserva{}, reservation.ErrReservaNotFound
	}
	res := cloneReserva(stored)
	change, err := fn(&res)
	if err != nil {
		return reservation.Reserva{}, err
	}
	if change.Restock {
		for _, it := range res.Items {
			if p, ok := r.s.productos[it.ProductoID]; ok {
				p.Stock += it.Cantidad
				p.UpdatedAt = res.UpdatedAt
				r.s.productos[it.ProductoID] = p
			}
		}
	}
	if change.Delete {
		delete(r.s.reservas, id)
	} else {
		r.s.reservas[id] = cloneReserva(res)
	}
	if change.Event != nil {
		r.s.appendEvent(*change.Event)
	}
	return res, nil
}

func (r *ReservaRepository) Get(_ context.Context, id string) (reservation.Reserva, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservas[id]
	if !ok {
		return reservation.Reserva{}, reservation.ErrReservaNotFound
	}
	return cloneReserva(res), nil
}

func (r *ReservaRepository) List(_ context.Context, f reservation.Filter) ([]reservation.Reserva, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]reservation.Reserva, 0)
	for _, res := range r.s.reservas {
		if f.UsuarioID != "" && res.UsuarioID != f.UsuarioID {
			continue
		}
		if f.Estado != "" && res.Estado != f.Estado {
			continue
		}
		out = append(out, cloneReserva(res))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Offset >= len(out) {
		return []reservation.Reserva{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *ReservaRepository) ListExpired(_ context.Context, now time.Time, limit int) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var ids []string
	for id, res := range r.s.reservas {
		if res.Expired(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
