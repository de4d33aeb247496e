package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/Inventory-Reservation-System/pkg/apperror"
)

type Estado string

const (
	EstadoPendiente  Estado = "pendiente"
	EstadoConfirmado Estado = "confirmado"
	EstadoCancelado  Estado = "cancelado"
)

func (e Estado) Valid() bool {
	switch e {
	case EstadoPendiente, EstadoConfirmado, EstadoCancelado:
		return true
	}
	return false
}

var transitions = map[Estado][]Estado{
	EstadoPendiente: {EstadoConfirmado, EstadoCancelado},
}

func (e Estado) CanTransition(to Estado) bool {
	for _, next := range transitions[e] {
		if next == to {
			return true
		}
	}
	return false
}

const (
	MinTTL     = 15 * time.Minute
	MaxTTL     = 30 * time.Minute
	DefaultTTL = MinTTL
)

type ReservaProducto struct {
	ProductoID     string          `json:"producto_id"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
}

func (i ReservaProducto) Subtotal() decimal.Decimal {
	return i.PrecioUnitario.Mul(decimal.NewFromInt(int64(i.Cantidad)))
}

type Reserva struct {
	ID        string            `json:"id"`
	UsuarioID string            `json:"usuario_id"`
	Estado    Estado            `json:"estado"`
	Items     []ReservaProducto `json:"items"`
	Total     decimal.Decimal   `json:"total"`
	ExpiraEn  time.Time         `json:"expira_en"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ComputeTotal sums line subtotals into Total.
func (r *Reserva) ComputeTotal() {
	total := decimal.Zero
	for _, it := range r.Items {
		total = total.Add(it.Subtotal())
	}
	r.Total = total
}

func (r Reserva) Expired(now time.Time) bool {
	return r.Estado == EstadoPendiente && !now.Before(r.ExpiraEn)
}

// TransitionTo moves the reservation to estado or returns a conflict.
func (r *Reserva) TransitionTo(to Estado, now time.Time) error {
	if !r.Estado.CanTransition(to) {
		return ErrInvalidTransition.WithDetails(map[string]Estado{"desde": r.Estado, "hacia": to})
	}
	if to == EstadoConfirmado && r.Expired(now) {
		return ErrReservaExpired.WithDetails(map[string]time.Time{"expira_en": r.ExpiraEn})
	}
	r.Estado = to
	r.UpdatedAt = now
	return nil
}

// MergeItems folds repeated products into one line each, keeping first-seen
// order.
func MergeItems(items []ReservaProducto) []ReservaProducto {
	idx := make(map[string]int, len(items))
	out := make([]ReservaProducto, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.ProductoID]; ok {
			out[i].Cantidad += it.Cantidad
			continue
		}
		idx[it.ProductoID] = len(out)
		out = append(out, it)
	}
	return out
}

// ResolveTTL turns the requested minutes into an expiry window. Zero means
// def.
func ResolveTTL(minutes int, def time.Duration) (time.Duration, error) {
	if minutes == 0 {
		return def, nil
	}
	ttl := time.Duration(minutes) * time.Minute
	if ttl < MinTTL || ttl > MaxTTL {
		return 0, ErrInvalidTTL.WithDetails(map[string]int{"min": int(MinTTL.Minutes()), "max": int(MaxTTL.Minutes())})
	}
	return ttl, nil
}

type Filter struct {
	UsuarioID string
	Estado    Estado
	Limit     int
	Offset    int
}

// StockShortage describes the line that could not be reserved.
type StockShortage struct {
	ProductoID string `json:"producto_id"`
	Solicitado int    `json:"solicitado"`
	Disponible int    `json:"disponible"`
}

var (
	ErrReservaNotFound   = apperror.NotFound("reserva not found")
	ErrProductoNotFound  = apperror.NotFound("producto not found")
	ErrInsufficientStock = apperror.InsufficientStock("insufficient stock")
	ErrInvalidTransition = apperror.Conflict("invalid estado transition")
	ErrReservaExpired    = apperror.Conflict("reserva has expired")
	ErrInvalidTTL        = apperror.Validation("minutos out of range")
	ErrInvalidEstado     = apperror.Validation("invalid estado")
	ErrEmptyItems        = apperror.Validation("items must not be empty")
	ErrInvalidCantidad   = apperror.Validation("cantidad must be positive")
)
