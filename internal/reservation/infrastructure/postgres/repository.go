package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/application"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/outbox"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Reserve decrements stock with a guarded UPDATE per line. Lines are visited
// in producto id order so concurrent reservations lock rows consistently.
func (r *Repository) Reserve(ctx context.Context, res *domain.Reserva, ev outbox.Event) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, i := range byProducto(res.Items) {
		it := res.Items[i]
		var precio string
		err := tx.QueryRow(ctx, `UPDATE productos SET stock = stock - $1, updated_at = $3
			WHERE id = $2 AND stock >= $1
			RETURNING precio::text`, it.Cantidad, it.ProductoID, res.CreatedAt).Scan(&precio)
		if errors.Is(err, pgx.ErrNoRows) {
			return shortage(ctx, tx, it)
		}
		if err != nil {
			return err
		}
		if res.Items[i].PrecioUnitario, err = decimal.NewFromString(precio); err != nil {
			return fmt.Errorf("parse precio of %s: %w", it.ProductoID, err)
		}
	}
	res.ComputeTotal()

	_, err = tx.Exec(ctx, `INSERT INTO reservas (id, usuario_id, estado, total, expira_en, created_at, updated_at)
		VALUES ($1,$2,$3,$4::numeric,$5,$6,$7)`,
		res.ID, res.UsuarioID, res.Estado, res.Total.String(), res.ExpiraEn, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for pos, it := range res.Items {
		batch.Queue(`INSERT INTO reserva_productos (reserva_id, producto_id, posicion, cantidad, precio_unitario)
			VALUES ($1,$2,$3,$4,$5::numeric)`,
			res.ID, it.ProductoID, pos, it.Cantidad, it.PrecioUnitario.String())
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	if err := insertOutbox(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// shortage explains why the guarded decrement of it matched no row.
func shortage(ctx context.Context, tx pgx.Tx, it domain.ReservaProducto) error {
	var stock int
	err := tx.QueryRow(ctx, `SELECT stock FROM productos WHERE id=$1`, it.ProductoID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrProductoNotFound.WithDetails(map[string]string{"producto_id": it.ProductoID})
	}
	if err != nil {
		return err
	}
	return domain.ErrInsufficientStock.WithDetails(domain.StockShortage{
		ProductoID: it.ProductoID,
		Solicitado: it.Cantidad,
		Disponible: stock,
	})
}

func byProducto(items []domain.ReservaProducto) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return items[order[a]].ProductoID < items[order[b]].ProductoID })
	return order
}

func (r *Repository) Mutate(ctx context.Context, id string, fn application.Mutator) (domain.Reserva, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Reserva{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	res, err := scanReserva(tx.QueryRow(ctx, selectReserva+` WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return domain.Reserva{}, err
	}
	list := []domain.Reserva{res}
	if err := loadItems(ctx, tx, list); err != nil {
		return domain.Reserva{}, err
	}
	res = list[0]

	change, err := fn(&res)
	if err != nil {
		return domain.Reserva{}, err
	}
	if change.Restock {
		for _, i := range byProducto(res.Items) {
			it := res.Items[i]
			if _, err := tx.Exec(ctx, `UPDATE productos SET stock = stock + $1, updated_at = $3 WHERE id = $2`,
				it.Cantidad, it.ProductoID, res.UpdatedAt); err != nil {
				return domain.Reserva{}, err
			}
		}
	}
	if change.Delete {
		_, err = tx.Exec(ctx, `DELETE FROM reservas WHERE id=$1`, id)
	} else {
		_, err = tx.Exec(ctx, `UPDATE reservas SET estado=$2, updated_at=$3 WHERE id=$1`, id, res.Estado, res.UpdatedAt)
	}
	if err != nil {
		return domain.Reserva{}, err
	}
	if change.Event != nil {
		if err := insertOutbox(ctx, tx, *change.Event); err != nil {
			return domain.Reserva{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Reserva{}, err
	}
	return res, nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Reserva, error) {
	res, err := scanReserva(r.pool.QueryRow(ctx, selectReserva+` WHERE id=$1`, id))
	if err != nil {
		return domain.Reserva{}, err
	}
	list := []domain.Reserva{res}
	if err := loadItems(ctx, r.pool, list); err != nil {
		return domain.Reserva{}, err
	}
	return list[0], nil
}

func (r *Repository) List(ctx context.Context, f domain.Filter) ([]domain.Reserva, error) {
	rows, err := r.pool.Query(ctx, selectReserva+`
		WHERE ($1 = '' OR usuario_id = $1) AND ($2 = '' OR estado = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`, f.UsuarioID, string(f.Estado), f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	var out []domain.Reserva
	for rows.Next() {
		res, err := scanReserva(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, res)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadItems(ctx, r.pool, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM reservas WHERE estado = 'pendiente' AND expira_en <= $1 ORDER BY expira_en, id LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const selectReserva = `SELECT id, usuario_id, estado, total::text, expira_en, created_at, updated_at FROM reservas`

func scanReserva(row pgx.Row) (domain.Reserva, error) {
	var (
		res   domain.Reserva
		total string
	)
	err := row.Scan(&res.ID, &res.UsuarioID, &res.Estado, &total, &res.ExpiraEn, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reserva{}, domain.ErrReservaNotFound
	}
	if err != nil {
		return domain.Reserva{}, err
	}
	if res.Total, err = decimal.NewFromString(total); err != nil {
		return domain.Reserva{}, fmt.Errorf("parse total of %s: %w", res.ID, err)
	}
	res.ExpiraEn = res.ExpiraEn.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	res.UpdatedAt = res.UpdatedAt.UTC()
	return res, nil
}

func loadItems(ctx context.Context, q querier, list []domain.Reserva) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	idx := make(map[string]int, len(list))
	for i, res := range list {
		ids[i] = res.ID
		idx[res.ID] = i
	}
	rows, err := q.Query(ctx, `SELECT reserva_id, producto_id, cantidad, precio_unitario::text
		FROM reserva_productos WHERE reserva_id = ANY($1) ORDER BY reserva_id, posicion`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rid    string
			it     domain.ReservaProducto
			precio string
		)
		if err := rows.Scan(&rid, &it.ProductoID, &it.Cantidad, &precio); err != nil {
			return err
		}
		if it.PrecioUnitario, err = decimal.NewFromString(precio); err != nil {
			return fmt.Errorf("parse precio_unitario of %s: %w", rid, err)
		}
		i := idx[rid]
		list[i].Items = append(list[i].Items, it)
	}
	return rows.Err()
}
