// Package memory is a process-local store implementing the catalog,
// reservation and outbox ports. A single mutex stands in for a database
// transaction, so every operation is atomic with respect to the others.
package memory

import (
	"sync"

	catalog "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
	reservation "github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/outbox"
)

type Store struct {
	mu         sync.Mutex
	productos  map[string]catalog.Producto
	categorias map[string]catalog.Categoria
	reservas   map[string]reservation.Reserva
	outbox     []outbox.Event
	nextEvent  int64
}

func NewStore() *Store {
	return &Store{
		productos:  map[string]catalog.Producto{},
		categorias: map[string]catalog.Categoria{},
		reservas:   map[string]reservation.Reserva{},
	}
}

func (s *Store) Productos() *ProductoRepository   { return &ProductoRepository{s: s} }
func (s *Store) Categorias() *CategoriaRepository { return &CategoriaRepository{s: s} }
func (s *Store) Reservas() *ReservaRepository     { return &ReservaRepository{s: s} }
func (s *Store) Outbox() *OutboxStore             { return &OutboxStore{s: s} }

// appendEvent must be called with mu held.
func (s *Store) appendEvent(ev outbox.Event) {
	s.nextEvent++
	ev.ID = s.nextEvent
	ev.Status = outbox.StatusPending
	s.outbox = append(s.outbox, ev)
}

func cloneProducto(p catalog.Producto) catalog.Producto {
	p.Imagenes = append([]catalog.Imagen(nil), p.Imagenes...)
	p.Categorias = append([]string(nil), p.Categorias...)
	return p
}

func cloneReserva(r reservation.Reserva) reservation.Reserva {
	r.Items = append([]reservation.ReservaProducto(nil), r.Items...)
	return r
}
