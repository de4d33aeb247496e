package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/Inventory-Reservation-System/pkg/apperror"
)

type Imagen struct {
	URL       string `json:"url"`
	Principal bool   `json:"principal"`
}

type Producto struct {
	ID          string          `json:"id"`
	Nombre      string          `json:"nombre"`
	Descripcion string          `json:"descripcion"`
	Precio      decimal.Decimal `json:"precio"`
	Stock       int             `json:"stock"`
	Imagenes    []Imagen        `json:"imagenes"`
	Categorias  []string        `json:"categorias"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ProductoFilter struct {
	CategoriaID string
	Query       string
	Limit       int
	Offset      int
}

// Column bounds: precio is NUMERIC(12,2), stock is INTEGER.
const (
	PrecioScale = 2
	MaxStock    = math.MaxInt32
)

var MaxPrecio = decimal.RequireFromString("9999999999.99")

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Normalize clamps paging to sane bounds.
func (f ProductoFilter) Normalize() ProductoFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Query = strings.TrimSpace(f.Query)
	return f
}

// Matches reports whether p passes the category and text parts of the filter.
func (f ProductoFilter) Matches(p Producto) bool {
	if f.CategoriaID != "" && !p.InCategoria(f.CategoriaID) {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	return strings.Contains(strings.ToLower(p.Nombre), q) || strings.Contains(strings.ToLower(p.Descripcion), q)
}

func (p Producto) InCategoria(id string) bool {
	for _, c := range p.Categorias {
		if c == id {
			return true
		}
	}
	return false
}

// PrincipalImagen returns the principal image, if any.
func (p Producto) PrincipalImagen() (Imagen, bool) {
	for _, img := range p.Imagenes {
		if img.Principal {
			return img, true
		}
	}
	return Imagen{}, false
}

// Validate checks the field invariants and normalizes images and categories
// in place.
func (p *Producto) Validate() error {
	p.Nombre = strings.TrimSpace(p.Nombre)
	if p.Nombre == "" {
		return ErrNombreRequired
	}
	if p.Precio.IsNegative() {
		return ErrPrecioNegative
	}
	if !p.Precio.Equal(p.Precio.Round(PrecioScale)) {
		return ErrPrecioScale.WithDetails(map[string]int{"decimales": PrecioScale})
	}
	if p.Precio.GreaterThan(MaxPrecio) {
		return ErrPrecioTooLarge.WithDetails(map[string]string{"max": MaxPrecio.StringFixed(PrecioScale)})
	}
	if p.Stock < 0 {
		return ErrStockNegative
	}
	if p.Stock > MaxStock {
		return ErrStockTooLarge.WithDetails(map[string]int{"max": MaxStock})
	}
	imgs, err := NormalizeImagenes(p.Imagenes)
	if err != nil {
		return err
	}
	p.Imagenes = imgs
	p.Categorias = dedupe(p.Categorias)
	return nil
}

// NormalizeImagenes enforces one principal image per product: more than one
// is rejected, none promotes the first.
func NormalizeImagenes(imgs []Imagen) ([]Imagen, error) {
	out := make([]Imagen, 0, len(imgs))
	principals := 0
	for _, img := range imgs {
		img.URL = strings.TrimSpace(img.URL)
		if img.URL == "" {
			return nil, ErrImagenURLRequired
		}
		if img.Principal {
			principals++
		}
		out = append(out, img)
	}
	if principals > 1 {
		return nil, ErrMultiplePrincipal.WithDetails(map[string]int{"principales": principals})
	}
	if principals == 0 && len(out) > 0 {
		out[0].Principal = true
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var (
	ErrProductoNotFound  = apperror.NotFound("producto not found")
	ErrProductoInUse     = apperror.Conflict("producto is referenced by reservations")
	ErrNombreRequired    = apperror.Validation("nombre is required")
	ErrPrecioNegative    = apperror.Validation("precio must not be negative")
	ErrPrecioScale       = apperror.Validation("precio has too many decimal places")
	ErrPrecioTooLarge    = apperror.Validation("precio is too large")
	ErrStockNegative     = apperror.Validation("stock must not be negative")
	ErrStockTooLarge     = apperror.Validation("stock is too large")
	ErrImagenURLRequired = apperror.Validation("imagen url is required")
	ErrMultiplePrincipal = apperror.Validation("only one principal image is allowed per producto")
)
