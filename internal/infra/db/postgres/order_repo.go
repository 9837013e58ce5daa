package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-order-bot/internal/domain"
	"telegram-order-bot/internal/domain/model"
	"telegram-order-bot/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*PostgresOrderRepo)(nil)

// ContactCipher protects the customer contact at rest (security.EncryptionService).
type ContactCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type PostgresOrderRepo struct {
	pool   *pgxpool.Pool
	cipher ContactCipher // nil stores contacts as plain text
}

func NewPostgresOrderRepo(pool *pgxpool.Pool, cipher ContactCipher) *PostgresOrderRepo {
	return &PostgresOrderRepo{pool: pool, cipher: cipher}
}

const orderColumns = `id, user_id, username, link, price_cny::float8, exchange_rate::float8,
       shipping_method, contact, contact_encrypted, status, created_at, confirmed_at`

func (r *PostgresOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if o == nil || o.ID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO orders (
  id, user_id, username, link, price_cny, exchange_rate, price_rub,
  shipping_method, contact, contact_encrypted, status, created_at, confirmed_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
) ON CONFLICT (id) DO UPDATE SET
  username=$3, link=$4, price_cny=$5, exchange_rate=$6, price_rub=$7,
  shipping_method=$8, contact=$9, contact_encrypted=$10, status=$11,
  confirmed_at=$13, updated_at=NOW();
`
	contact, encrypted, err := r.sealContact(o.Contact)
	if err != nil {
		return err
	}
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = exec.Exec(ctx, q,
		o.ID, o.UserID, o.Username, o.Link, o.PriceCNY, o.ExchangeRate, o.PriceRUB(),
		string(o.ShippingMethod), contact, encrypted, string(o.Status), o.CreatedAt, o.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

func (r *PostgresOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	row := exec.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1;`, id)
	o, err := r.scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

// ListRecent returns the newest orders with status first. limit <= 0 means 20.
func (r *PostgresOrderRepo) ListRecent(ctx context.Context, tx repository.Tx, status model.OrderStatus, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := exec.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE status=$1 ORDER BY created_at DESC, id DESC LIMIT $2;`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PostgresOrderRepo) CountByStatus(ctx context.Context, tx repository.Tx, status model.OrderStatus) (int, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE status=$1;`, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func (r *PostgresOrderRepo) scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o         model.Order
		shipping  string
		status    string
		encrypted bool
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.Username, &o.Link, &o.PriceCNY, &o.ExchangeRate,
		&shipping, &o.Contact, &encrypted, &status, &o.CreatedAt, &o.ConfirmedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	o.ShippingMethod = model.ShippingMethod(shipping)
	o.Status = model.OrderStatus(status)
	if encrypted {
		if r.cipher == nil {
			return nil, fmt.Errorf("order %s: contact is encrypted but no key is configured", o.ID)
		}
		plain, err := r.cipher.Decrypt(o.Contact)
		if err != nil {
			return nil, fmt.Errorf("decrypt contact: %w", err)
		}
		o.Contact = plain
	}
	return &o, nil
}

func (r *PostgresOrderRepo) sealContact(contact string) (string, bool, error) {
	if r.cipher == nil || contact == "" {
		return contact, false, nil
	}
	ct, err := r.cipher.Encrypt(contact)
	if err != nil {
		return "", false, fmt.Errorf("encrypt contact: %w", err)
	}
	return ct, true, nil
}
