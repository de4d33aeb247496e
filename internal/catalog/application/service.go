package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
)

type Service struct {
	productos  ProductoRepository
	categorias CategoriaRepository
	now        func() time.Time
}

func NewService(productos ProductoRepository, categorias CategoriaRepository) *Service {
	return &Service{
		productos:  productos,
		categorias: categorias,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type CreateProductoInput struct {
	Nombre      string
	Descripcion string
	Precio      decimal.Decimal
	Stock       int
	Imagenes    []domain.Imagen
	Categorias  []string
}

// ProductoPatch carries the fields of a partial update; nil means unchanged.
type ProductoPatch struct {
	Nombre      *string
	Descripcion *string
	Precio      *decimal.Decimal
	Stock       *int
	Imagenes    *[]domain.Imagen
	Categorias  *[]string
}

type ProductoPage struct {
	Items  []domain.Producto `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

func (s *Service) ListProductos(ctx context.Context, filter domain.ProductoFilter) (ProductoPage, error) {
	filter = filter.Normalize()
	items, total, err := s.productos.List(ctx, filter)
	if err != nil {
		return ProductoPage{}, fmt.Errorf("list productos: %w", err)
	}
	if items == nil {
		items = []domain.Producto{}
	}
	return ProductoPage{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *Service) GetProducto(ctx context.Context, id string) (domain.Producto, error) {
	return s.productos.Get(ctx, id)
}

func (s *Service) CreateProducto(ctx context.Context, in CreateProductoInput) (domain.Producto, error) {
	now := s.now()
	p := domain.Producto{
		ID:          uuid.NewString(),
		Nombre:      in.Nombre,
		Descripcion: in.Descripcion,
		Precio:      in.Precio,
		Stock:       in.Stock,
		Imagenes:    in.Imagenes,
		Categorias:  in.Categorias,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.validate(ctx, &p); err != nil {
		return domain.Producto{}, err
	}
	if err := s.productos.Create(ctx, p); err != nil {
		return domain.Producto{}, fmt.Errorf("create producto: %w", err)
	}
	return p, nil
}

func (s *Service) UpdateProducto(ctx context.Context, id string, patch ProductoPatch) (domain.Producto, error) {
	// categorias are checked before the row is locked; the memory store
	// serializes both repositories on one mutex.
	if patch.Categorias != nil {
		if err := s.checkCategorias(ctx, *patch.Categorias); err != nil {
			return domain.Producto{}, err
		}
	}
	now := s.now()
	p, err := s.productos.Update(ctx, id, func(p *domain.Producto) error {
		if patch.Nombre != nil {
			p.Nombre = *patch.Nombre
		}
		if patch.Descripcion != nil {
			p.Descripcion = *patch.Descripcion
		}
		if patch.Precio != nil {
			p.Precio = *patch.Precio
		}
		if patch.Stock != nil {
			p.Stock = *patch.Stock
		}
		if patch.Imagenes != nil {
			p.Imagenes = *patch.Imagenes
		}
		if patch.Categorias != nil {
			p.Categorias = *patch.Categorias
		}
		p.UpdatedAt = now
		return p.Validate()
	})
	if err != nil {
		return domain.Producto{}, fmt.Errorf("update producto %s: %w", id, err)
	}
	return p, nil
}

func (s *Service) DeleteProducto(ctx context.Context, id string) error {
	return s.productos.Delete(ctx, id)
}

func (s *Service) validate(ctx context.Context, p *domain.Producto) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.checkCategorias(ctx, p.Categorias)
}

func (s *Service) checkCategorias(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := s.categorias.Missing(ctx, ids)
	if err != nil {
		return fmt.Errorf("check categorias: %w", err)
	}
	if len(missing) > 0 {
		return domain.ErrUnknownCategorias.WithDetails(map[string][]string{"categorias": missing})
	}
	return nil
}

func (s *Service) ListCategorias(ctx context.Context) ([]domain.Categoria, error) {
	cs, err := s.categorias.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categorias: %w", err)
	}
	if cs == nil {
		cs = []domain.Categoria{}
	}
	return cs, nil
}

func (s *Service) GetCategoria(ctx context.Context, id string) (domain.Categoria, error) {
	return s.categorias.Get(ctx, id)
}

func (s *Service) CreateCategoria(ctx context.Context, nombre, descripcion string) (domain.Categoria, error) {
	c := domain.Categoria{
		ID:          uuid.NewString(),
		Nombre:      nombre,
		Descripcion: descripcion,
		CreatedAt:   s.now(),
	}
	if err := c.Validate(); err != nil {
		return domain.Categoria{}, err
	}
	if err := s.categorias.Create(ctx, c); err != nil {
		return domain.Categoria{}, fmt.Errorf("create categoria: %w", err)
	}
	return c, nil
}

func (s *Service) DeleteCategoria(ctx context.Context, id string) error {
	return s.categorias.Delete(ctx, id)
}
