// Package seed loads a small demo catalog into an empty store.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/application"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
)

type producto struct {
	nombre, descripcion, precio string
	stock                       int
	categoria                   string
	imagen                      string
}

var categorias = []struct{ nombre, descripcion string }{
	{"Periféricos", "Teclados, mouse y accesorios"},
	{"Audio", "Auriculares y parlantes"},
	{"Monitores", "Pantallas y soportes"},
}

var productos = []producto{
	{"Teclado mecánico", "Switches rojos, layout latino", "89.90", 25, "Periféricos", "https://cdn.example.com/teclado.jpg"},
	{"Mouse inalámbrico", "2.4 GHz, 1600 dpi", "24.50", 40, "Periféricos", "https://cdn.example.com/mouse.jpg"},
	{"Auriculares over-ear", "Cancelación de ruido", "129.00", 10, "Audio", "https://cdn.example.com/auriculares.jpg"},
	{"Parlante bluetooth", "Resistente al agua", "45.00", 15, "Audio", ""},
	{"Monitor 27\"", "IPS 1440p 144 Hz", "319.99", 5, "Monitores", "https://cdn.example.com/monitor.jpg"},
}

// Run populates the catalog unless it already holds products.
func Run(ctx context.Context, log *slog.Logger, svc *application.Service) error {
	page, err := svc.ListProductos(ctx, domain.ProductoFilter{Limit: 1})
	if err != nil {
		return fmt.Errorf("check catalog: %w", err)
	}
	if page.Total > 0 {
		log.Info("seed skipped, catalog not empty", "productos", page.Total)
		return nil
	}

	ids := make(map[string]string, len(categorias))
	for _, c := range categorias {
		created, err := svc.CreateCategoria(ctx, c.nombre, c.descripcion)
		if err != nil {
			return fmt.Errorf("seed categoria %q: %w", c.nombre, err)
		}
		ids[c.nombre] = created.ID
	}
	for _, p := range productos {
		in := application.CreateProductoInput{
			Nombre:      p.nombre,
			Descripcion: p.descripcion,
			Precio:      decimal.RequireFromString(p.precio),
			Stock:       p.stock,
			Categorias:  []string{ids[p.categoria]},
		}
		if p.imagen != "" {
			in.Imagenes = []domain.Imagen{{URL: p.imagen}}
		}
		if _, err := svc.CreateProducto(ctx, in); err != nil {
			return fmt.Errorf("seed producto %q: %w", p.nombre, err)
		}
	}
	log.Info("demo catalog seeded", "categorias", len(categorias), "productos", len(productos))
	return nil
}
