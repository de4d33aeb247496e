package memory

import (
	"context"
	"sort"
	"strings"

	catalog "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
)

type ProductoRepository struct{ s *Store }

func (r *ProductoRepository) List(_ context.Context, f catalog.ProductoFilter) ([]catalog.Producto, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	matched := make([]catalog.Producto, 0, len(r.s.productos))
	for _, p := range r.s.productos {
		if f.Matches(p) {
			matched = append(matched, cloneProducto(p))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	total := len(matched)
	if f.Offset >= total {
		return []catalog.Producto{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}

func (r *ProductoRepository) Get(_ context.Context, id string) (catalog.Producto, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.productos[id]
	if !ok {
		return catalog.Producto{}, catalog.ErrProductoNotFound
	}
	return cloneProducto(p), nil
}

func (r *ProductoRepository) Create(_ context.Context, p catalog.Producto) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.productos[p.ID] = cloneProducto(p)
	return nil
}

func (r *ProductoRepository) Update(_ context.Context, id string, fn func(p *catalog.Producto) error) (catalog.Producto, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.productos[id]
	if !ok {
		return catalog.Producto{}, catalog.ErrProductoNotFound
	}
	p := cloneProducto(current)
	if err := fn(&p); err != nil {
		return catalog.Producto{}, err
	}
	if missing := r.s.missingCategorias(p.Categorias); len(missing) > 0 {
		return catalog.Producto{}, catalog.ErrUnknownCategorias.WithDetails(map[string][]string{"categorias": missing})
	}
	p.ID = id
	r.s.productos[id] = cloneProducto(p)
	return p, nil
}

func (r *ProductoRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.productos[id]; !ok {
		return catalog.ErrProductoNotFound
	}
	for _, res := range r.s.reservas {
		for _, it := range res.Items {
			if it.ProductoID == id {
				return catalog.ErrProductoInUse
			}
		}
	}
	delete(r.s.productos, id)
	return nil
}

type CategoriaRepository struct{ s *Store }

func (r *CategoriaRepository) List(_ context.Context) ([]catalog.Categoria, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]catalog.Categoria, 0, len(r.s.categorias))
	for _, c := range r.s.categorias {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, nil
}

func (r *CategoriaRepository) Get(_ context.Context, id string) (catalog.Categoria, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categorias[id]
	if !ok {
		return catalog.Categoria{}, catalog.ErrCategoriaNotFound
	}
	return c, nil
}

func (r *CategoriaRepository) Create(_ context.Context, c catalog.Categoria) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.categorias {
		if strings.EqualFold(existing.Nombre, c.Nombre) {
			return catalog.ErrCategoriaExists
		}
	}
	r.s.categorias[c.ID] = c
	return nil
}

// Delete removes the categoria and unlinks it from every producto.
func (r *CategoriaRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categorias[id]; !ok {
		return catalog.ErrCategoriaNotFound
	}
	delete(r.s.categorias, id)
	for pid, p := range r.s.productos {
		if !p.InCategoria(id) {
			continue
		}
		kept := make([]string, 0, len(p.Categorias))
		for _, c := range p.Categorias {
			if c != id {
				kept = append(kept, c)
			}
		}
		p.Categorias = kept
		r.s.productos[pid] = p
	}
	return nil
}

func (r *CategoriaRepository) Missing(_ context.Context, ids []string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.missingCategorias(ids), nil
}

// missingCategorias must be called with mu held.
func (s *Store) missingCategorias(ids []string) []string {
	var missing []string
	for _, id := range ids {
		if _, ok := s.categorias[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
