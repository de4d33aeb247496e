package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ProductoRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewProductoRepository(log *slog.Logger, pool *pgxpool.Pool) *ProductoRepository {
	return &ProductoRepository{log: log, pool: pool}
}

func (r *ProductoRepository) List(ctx context.Context, f domain.ProductoFilter) ([]domain.Producto, int, error) {
	var (
		where []string
		args  []any
	)
	if f.CategoriaID != "" {
		args = append(args, f.CategoriaID)
		where = append(where, fmt.Sprintf(`EXISTS (SELECT 1 FROM producto_categorias pc WHERE pc.producto_id = p.id AND pc.categoria_id = $%d)`, len(args)))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where = append(where, fmt.Sprintf(`(p.nombre ILIKE $%d OR p.descripcion ILIKE $%d)`, len(args), len(args)))
	}
	query := `SELECT p.id, p.nombre, p.descripcion, p.precio::text, p.stock, p.created_at, p.updated_at, count(*) OVER ()
		FROM productos p` + whereClause(where)
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY p.created_at DESC, p.id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		items []domain.Producto
		total int
	)
	for rows.Next() {
		var (
			p      domain.Producto
			precio string
		)
		if err := rows.Scan(&p.ID, &p.Nombre, &p.Descripcion, &precio, &p.Stock, &p.CreatedAt, &p.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		if p.Precio, err = decimal.NewFromString(precio); err != nil {
			return nil, 0, fmt.Errorf("parse precio of %s: %w", p.ID, err)
		}
		items = append(items, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(items) == 0 && f.Offset > 0 {
		// the window count is lost when the page is past the end
		if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM productos p`+whereClause(where), args[:len(args)-2]...).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	if err := loadDetails(ctx, r.pool, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func whereClause(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return ` WHERE ` + strings.Join(where, ` AND `)
}

func (r *ProductoRepository) Get(ctx context.Context, id string) (domain.Producto, error) {
	return getProducto(ctx, r.pool, id, false)
}

func getProducto(ctx context.Context, q querier, id string, forUpdate bool) (domain.Producto, error) {
	var (
		p      domain.Producto
		precio string
	)
	query := `SELECT id, nombre, descripcion, precio::text, stock, created_at, updated_at FROM productos WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	err := q.QueryRow(ctx, query, id).
		Scan(&p.ID, &p.Nombre, &p.Descripcion, &precio, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Producto{}, domain.ErrProductoNotFound
	}
	if err != nil {
		return domain.Producto{}, err
	}
	if p.Precio, err = decimal.NewFromString(precio); err != nil {
		return domain.Producto{}, fmt.Errorf("parse precio: %w", err)
	}
	items := []domain.Producto{p}
	if err := loadDetails(ctx, q, items); err != nil {
		return domain.Producto{}, err
	}
	return items[0], nil
}

func (r *ProductoRepository) Create(ctx context.Context, p domain.Producto) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO productos (id, nombre, descripcion, precio, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4::numeric,$5,$6,$7)`,
		p.ID, p.Nombre, p.Descripcion, p.Precio.String(), p.Stock, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}
	if err := writeDetails(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update locks the row, applies fn and writes the result back in the same
// transaction. Images and categories are replaced wholesale; stock is only
// written when fn changed it, so concurrent reservations never lose a
// decrement.
func (r *ProductoRepository) Update(ctx context.Context, id string, fn func(p *domain.Producto) error) (domain.Producto, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Producto{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	p, err := getProducto(ctx, tx, id, true)
	if err != nil {
		return domain.Producto{}, err
	}
	before := p.Stock
	if err := fn(&p); err != nil {
		return domain.Producto{}, err
	}
	p.ID = id

	if _, err := tx.Exec(ctx, `UPDATE productos SET nombre=$2, descripcion=$3, precio=$4::numeric,
		stock = CASE WHEN $6 THEN $5 ELSE stock END, updated_at=$7 WHERE id=$1`,
		id, p.Nombre, p.Descripcion, p.Precio.String(), p.Stock, p.Stock != before, p.UpdatedAt); err != nil {
		return domain.Producto{}, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM producto_imagenes WHERE producto_id=$1`, id); err != nil {
		return domain.Producto{}, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM producto_categorias WHERE producto_id=$1`, id); err != nil {
		return domain.Producto{}, err
	}
	if err := writeDetails(ctx, tx, p); err != nil {
		return domain.Producto{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Producto{}, err
	}
	return p, nil
}

func (r *ProductoRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM productos WHERE id=$1`, id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return domain.ErrProductoInUse.Wrap(err)
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrProductoNotFound
	}
	return nil
}

func writeDetails(ctx context.Context, tx pgx.Tx, p domain.Producto) error {
	batch := &pgx.Batch{}
	for i, img := range p.Imagenes {
		batch.Queue(`INSERT INTO producto_imagenes (producto_id, posicion, url, principal) VALUES ($1,$2,$3,$4)`,
			p.ID, i, img.URL, img.Principal)
	}
	for _, c := range p.Categorias {
		batch.Queue(`INSERT INTO producto_categorias (producto_id, categoria_id) VALUES ($1,$2)`, p.ID, c)
	}
	if batch.Len() == 0 {
		return nil
	}
	err := tx.SendBatch(ctx, batch).Close()
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return domain.ErrUnknownCategorias.Wrap(err)
	}
	return err
}

// loadDetails fills images and categories for items in two queries.
func loadDetails(ctx context.Context, q querier, items []domain.Producto) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	idx := make(map[string]int, len(items))
	for i, p := range items {
		ids[i] = p.ID
		idx[p.ID] = i
		items[i].Imagenes = []domain.Imagen{}
		items[i].Categorias = []string{}
	}

	rows, err := q.Query(ctx, `SELECT producto_id, url, principal FROM producto_imagenes WHERE producto_id = ANY($1) ORDER BY producto_id, posicion`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			pid string
			img domain.Imagen
		)
		if err := rows.Scan(&pid, &img.URL, &img.Principal); err != nil {
			rows.Close()
			return err
		}
		i := idx[pid]
		items[i].Imagenes = append(items[i].Imagenes, img)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `SELECT producto_id, categoria_id FROM producto_categorias WHERE producto_id = ANY($1) ORDER BY producto_id, categoria_id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var pid, cid string
		if err := rows.Scan(&pid, &cid); err != nil {
			return err
		}
		i := idx[pid]
		items[i].Categorias = append(items[i].Categorias, cid)
	}
	return rows.Err()
}

type CategoriaRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewCategoriaRepository(log *slog.Logger, pool *pgxpool.Pool) *CategoriaRepository {
	return &CategoriaRepository{log: log, pool: pool}
}

func (r *CategoriaRepository) List(ctx context.Context) ([]domain.Categoria, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, nombre, descripcion, created_at FROM categorias ORDER BY nombre`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Categoria
	for rows.Next() {
		var c domain.Categoria
		if err := rows.Scan(&c.ID, &c.Nombre, &c.Descripcion, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CategoriaRepository) Get(ctx context.Context, id string) (domain.Categoria, error) {
	var c domain.Categoria
	err := r.pool.QueryRow(ctx, `SELECT id, nombre, descripcion, created_at FROM categorias WHERE id=$1`, id).
		Scan(&c.ID, &c.Nombre, &c.Descripcion, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Categoria{}, domain.ErrCategoriaNotFound
	}
	return c, err
}

func (r *CategoriaRepository) Create(ctx context.Context, c domain.Categoria) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO categorias (id, nombre, descripcion, created_at) VALUES ($1,$2,$3,$4)`,
		c.ID, c.Nombre, c.Descripcion, c.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.ErrCategoriaExists.Wrap(err)
	}
	return err
}

// Delete removes the categoria; producto links go with it via ON DELETE CASCADE.
func (r *CategoriaRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM categorias WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrCategoriaNotFound
	}
	return nil
}

func (r *CategoriaRepository) Missing(ctx context.Context, ids []string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id FROM unnest($1::text[]) AS u(id) WHERE NOT EXISTS (SELECT 1 FROM categorias c WHERE c.id = u.id)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		missing = append(missing, id)
	}
	return missing, rows.Err()
}
