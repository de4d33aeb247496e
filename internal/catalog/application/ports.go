package application

import (
	"context"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
)

type ProductoRepository interface {
	List(ctx context.Context, filter domain.ProductoFilter) ([]domain.Producto, int, error)
	Get(ctx context.Context, id string) (domain.Producto, error)
	Create(ctx context.Context, p domain.Producto) error
	// Update locks producto id, applies fn and persists the result. An error
	// from fn aborts without writing.
	Update(ctx context.Context, id string, fn func(p *domain.Producto) error) (domain.Producto, error)
	Delete(ctx context.Context, id string) error
}

type CategoriaRepository interface {
	List(ctx context.Context) ([]domain.Categoria, error)
	Get(ctx context.Context, id string) (domain.Categoria, error)
	Create(ctx context.Context, c domain.Categoria) error
	Delete(ctx context.Context, id string) error
	// Missing returns the ids that do not exist.
	Missing(ctx context.Context, ids []string) ([]string, error)
}
