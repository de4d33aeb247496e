package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/application"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/auth"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	authn   *auth.Authenticator
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, authn *auth.Authenticator) *Handler {
	return &Handler{
		log:     log,
		service: service,
		authn:   authn,
		tracer:  otel.Tracer("catalog-http"),
	}
}

type imagenReq struct {
	URL       string `json:"url" validate:"required"`
	Principal bool   `json:"principal"`
}

type createProductoReq struct {
	Nombre      string          `json:"nombre" validate:"required"`
	Descripcion string          `json:"descripcion"`
	Precio      decimal.Decimal `json:"precio"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Imagenes    []imagenReq     `json:"imagenes" validate:"dive"`
	Categorias  []string        `json:"categorias" validate:"dive,required"`
}

type updateProductoReq struct {
	Nombre      *string          `json:"nombre" validate:"omitempty,min=1"`
	Descripcion *string          `json:"descripcion"`
	Precio      *decimal.Decimal `json:"precio"`
	Stock       *int             `json:"stock" validate:"omitempty,gte=0"`
	Imagenes    *[]imagenReq     `json:"imagenes" validate:"omitempty,dive"`
	Categorias  *[]string        `json:"categorias" validate:"omitempty,dive,required"`
}

type createCategoriaReq struct {
	Nombre      string `json:"nombre" validate:"required"`
	Descripcion string `json:"descripcion"`
}

// Register mounts the catalog routes. Reads are public; writes need the
// admin role.
func (h *Handler) Register(r chi.Router) {
	admin := func(r chi.Router) {
		r.Use(h.authn.Middleware, auth.RequireRole(h.log, auth.RoleAdmin))
	}

	r.Route("/productos", func(r chi.Router) {
		r.Get("/", h.listProductos)
		r.Get("/{id}", h.getProducto)
		r.Group(func(r chi.Router) {
			admin(r)
			r.Post("/", h.createProducto)
			r.Patch("/{id}", h.updateProducto)
			r.Delete("/{id}", h.deleteProducto)
		})
	})
	r.Route("/categorias", func(r chi.Router) {
		r.Get("/", h.listCategorias)
		r.Get("/{id}", h.getCategoria)
		r.Group(func(r chi.Router) {
			admin(r)
			r.Post("/", h.createCategoria)
			r.Delete("/{id}", h.deleteCategoria)
		})
	})
}

func (h *Handler) listProductos(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProductos")
	defer span.End()

	q := r.URL.Query()
	filter := domain.ProductoFilter{CategoriaID: q.Get("categoria"), Query: q.Get("q")}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		httpx.Error(w, h.log, httpx.ParamError("limit", q.Get("limit")))
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		httpx.Error(w, h.log, httpx.ParamError("offset", q.Get("offset")))
		return
	}

	page, err := h.service.ListProductos(ctx, filter)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) getProducto(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProducto")
	defer span.End()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("producto.id", id))
	p, err := h.service.GetProducto(ctx, id)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) createProducto(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateProducto")
	defer span.End()

	var req createProductoReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	p, err := h.service.CreateProducto(ctx, application.CreateProductoInput{
		Nombre:      req.Nombre,
		Descripcion: req.Descripcion,
		Precio:      req.Precio,
		Stock:       req.Stock,
		Imagenes:    toImagenes(req.Imagenes),
		Categorias:  req.Categorias,
	})
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	h.log.Info("producto created", "producto_id", p.ID)
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProducto(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateProducto")
	defer span.End()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("producto.id", id))
	var req updateProductoReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	patch := application.ProductoPatch{
		Nombre:      req.Nombre,
		Descripcion: req.Descripcion,
		Precio:      req.Precio,
		Stock:       req.Stock,
		Categorias:  req.Categorias,
	}
	if req.Imagenes != nil {
		imgs := toImagenes(*req.Imagenes)
		patch.Imagenes = &imgs
	}
	p, err := h.service.UpdateProducto(ctx, id, patch)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProducto(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteProducto")
	defer span.End()

	id := chi.URLParam(r, "id")
	if err := h.service.DeleteProducto(ctx, id); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	h.log.Info("producto deleted", "producto_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCategorias(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListCategorias")
	defer span.End()

	cs, err := h.service.ListCategorias(ctx)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cs)
}

func (h *Handler) getCategoria(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetCategoria")
	defer span.End()

	c, err := h.service.GetCategoria(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) createCategoria(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateCategoria")
	defer span.End()

	var req createCategoriaReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	c, err := h.service.CreateCategoria(ctx, req.Nombre, req.Descripcion)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	h.log.Info("categoria created", "categoria_id", c.ID)
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) deleteCategoria(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteCategoria")
	defer span.End()

	id := chi.URLParam(r, "id")
	if err := h.service.DeleteCategoria(ctx, id); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toImagenes(in []imagenReq) []domain.Imagen {
	out := make([]domain.Imagen, 0, len(in))
	for _, img := range in {
		out = append(out, domain.Imagen{URL: img.URL, Principal: img.Principal})
	}
	return out
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
