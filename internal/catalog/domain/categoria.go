package domain

import (
	"strings"
	"time"

	"github.com/dmehra2102/Inventory-Reservation-System/pkg/apperror"
)

type Categoria struct {
	ID          string    `json:"id"`
	Nombre      string    `json:"nombre"`
	Descripcion string    `json:"descripcion"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c *Categoria) Validate() error {
	c.Nombre = strings.TrimSpace(c.Nombre)
	if c.Nombre == "" {
		return ErrNombreRequired
	}
	return nil
}

var (
	ErrCategoriaNotFound = apperror.NotFound("categoria not found")
	ErrCategoriaExists   = apperror.Conflict("categoria already exists")
	ErrUnknownCategorias = apperror.Validation("unknown categorias")
)
