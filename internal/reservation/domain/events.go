package domain

import "time"

const AggregateType = "reserva"

const (
	EventReservationCreated   = "ReservationCreated"
	EventReservationConfirmed = "ReservationConfirmed"
	EventReservationReleased  = "ReservationReleased"
	EventReservationExpired   = "ReservationExpired"
	EventReservationDeleted   = "ReservationDeleted"
)

type EventItem struct {
	ProductoID string `json:"producto_id"`
	Cantidad   int    `json:"cantidad"`
}

// ReservationEvent is the payload of every reservation outbox event.
type ReservationEvent struct {
	ReservaID string      `json:"reserva_id"`
	UsuarioID string      `json:"usuario_id"`
	Estado    Estado      `json:"estado"`
	Items     []EventItem `json:"items"`
	ExpiraEn  time.Time   `json:"expira_en"`
	At        time.Time   `json:"at"`
}

func NewReservationEvent(r Reserva, at time.Time) ReservationEvent {
	items := make([]EventItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, EventItem{ProductoID: it.ProductoID, Cantidad: it.Cantidad})
	}
	return ReservationEvent{
		ReservaID: r.ID,
		UsuarioID: r.UsuarioID,
		Estado:    r.Estado,
		Items:     items,
		ExpiraEn:  r.ExpiraEn,
		At:        at,
	}
}
