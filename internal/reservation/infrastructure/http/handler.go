package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/application"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/apperror"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/auth"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/httpx"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/idempotency"
)

var errNotOwner = apperror.Forbidden("reserva belongs to another usuario")

type Handler struct {
	log     *slog.Logger
	service *application.Service
	authn   *auth.Authenticator
	idem    idempotency.Store
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, authn *auth.Authenticator, idem idempotency.Store) *Handler {
	return &Handler{
		log:     log,
		service: service,
		authn:   authn,
		idem:    idem,
		tracer:  otel.Tracer("reservation-http"),
	}
}

type itemReq struct {
	ProductoID string `json:"producto_id" validate:"required"`
	Cantidad   int    `json:"cantidad" validate:"gt=0"`
}

type reservarReq struct {
	Items   []itemReq `json:"items" validate:"required,min=1,dive"`
	Minutos int       `json:"minutos" validate:"omitempty,min=15,max=30"`
}

type liberarReq struct {
	ReservaID string `json:"reserva_id" validate:"required"`
}

type updateEstadoReq struct {
	Estado domain.Estado `json:"estado" validate:"required"`
}

// Register mounts the reservation routes. Every route needs a token;
// deleting needs the admin role.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authn.Middleware)

		r.Route("/reservas", func(r chi.Router) {
			r.Get("/", h.listReservas)
			r.Get("/{id}", h.getReserva)
			r.Patch("/{id}", h.updateEstado)
			r.With(auth.RequireRole(h.log, auth.RoleAdmin)).Delete("/{id}", h.deleteReserva)
		})
		r.Route("/stock", func(r chi.Router) {
			r.With(idempotency.Middleware(h.log, h.idem, subject)).Post("/reservar", h.reservar)
			r.Post("/liberar", h.liberar)
		})
	})
}

func subject(r *http.Request) string {
	p, _ := auth.FromContext(r.Context())
	return p.Subject
}

func (h *Handler) reservar(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Reservar")
	defer span.End()

	var req reservarReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	items := make([]application.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, application.ItemInput{ProductoID: it.ProductoID, Cantidad: it.Cantidad})
	}

	p, _ := auth.FromContext(ctx)
	res, err := h.service.Reservar(ctx, p.Subject, items, req.Minutos)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	span.SetAttributes(attribute.String("reserva.id", res.ID))
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) liberar(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Liberar")
	defer span.End()

	var req liberarReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	span.SetAttributes(attribute.String("reserva.id", req.ReservaID))
	if err := h.authorize(ctx, req.ReservaID); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	res, err := h.service.Liberar(ctx, req.ReservaID)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) listReservas(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListReservas")
	defer span.End()

	q := r.URL.Query()
	filter := domain.Filter{UsuarioID: q.Get("usuario_id"), Estado: domain.Estado(q.Get("estado"))}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpx.Error(w, h.log, httpx.ParamError(name, v))
			return
		}
		*dst = n
	}
	if p, _ := auth.FromContext(ctx); !p.IsAdmin() {
		filter.UsuarioID = p.Subject
	}

	rs, err := h.service.ListReservas(ctx, filter)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rs)
}

func (h *Handler) getReserva(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetReserva")
	defer span.End()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("reserva.id", id))
	res, err := h.service.GetReserva(ctx, id)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if !owns(ctx, res) {
		httpx.Error(w, h.log, errNotOwner)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) updateEstado(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateEstado")
	defer span.End()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("reserva.id", id))
	var req updateEstadoReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if err := h.authorize(ctx, id); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	res, err := h.service.UpdateEstado(ctx, id, req.Estado)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) deleteReserva(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteReserva")
	defer span.End()

	if err := h.service.DeleteReserva(ctx, chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorize lets admins through and everyone else only to their own reservas.
func (h *Handler) authorize(ctx context.Context, id string) error {
	if p, _ := auth.FromContext(ctx); p.IsAdmin() {
		return nil
	}
	res, err := h.service.GetReserva(ctx, id)
	if err != nil {
		return err
	}
	if !owns(ctx, res) {
		return errNotOwner
	}
	return nil
}

func owns(ctx context.Context, res domain.Reserva) bool {
	p, _ := auth.FromContext(ctx)
	return p.IsAdmin() || res.UsuarioID == p.Subject
}
