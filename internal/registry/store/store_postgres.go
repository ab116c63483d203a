package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"provenance/internal/registry/models"
	"provenance/pkg/domain"
	"provenance/pkg/platform/sentinel"
)

const pgUniqueViolation = "23505"

// Postgres persists registry state in PostgreSQL. The same invariants the
// in-memory store enforces under its mutex are enforced here with row locks
// on the single config row: id allocation, the capacity ceiling and the hash
// index all serialize through it.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registry store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the registry tables and seeds the config row. Safe to
// call on every startup.
func (p *Postgres) EnsureSchema(ctx context.Context, maxBatches, registrationFee uint64) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS registry_config (
			id               SMALLINT PRIMARY KEY CHECK (id = 1),
			next_batch_id    BIGINT NOT NULL,
			max_batches      BIGINT NOT NULL,
			registration_fee BIGINT NOT NULL,
			authority        TEXT
		);
		CREATE TABLE IF NOT EXISTS batches (
			id             BIGINT PRIMARY KEY,
			hash           BYTEA NOT NULL UNIQUE,
			origin         TEXT NOT NULL,
			created_height BIGINT NOT NULL,
			cert_id        BIGINT NOT NULL,
			status         BOOLEAN NOT NULL,
			product_type   TEXT NOT NULL,
			quantity       BIGINT NOT NULL,
			location       TEXT NOT NULL,
			currency       TEXT NOT NULL,
			expiry         BIGINT NOT NULL,
			owner          TEXT NOT NULL,
			description    TEXT NOT NULL,
			price          BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS batch_updates (
			batch_id        BIGINT PRIMARY KEY REFERENCES batches (id),
			update_hash     BYTEA NOT NULL,
			update_quantity BIGINT NOT NULL,
			update_height   BIGINT NOT NULL,
			updater         TEXT NOT NULL
		);
	`
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create registry schema: %w", err)
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO registry_config (id, next_batch_id, max_batches, registration_fee)
		VALUES (1, 0, $1, $2)
		ON CONFLICT (id) DO NOTHING
	`, int64(maxBatches), int64(registrationFee))
	if err != nil {
		return fmt.Errorf("seed registry config: %w", err)
	}
	return nil
}

func (p *Postgres) Insert(ctx context.Context, batch *models.Batch) (uint64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert batch: %w", err)
	}
	defer tx.Rollback()

	var nextID, maxBatches int64
	err = tx.QueryRowContext(ctx, `
		SELECT next_batch_id, max_batches FROM registry_config WHERE id = 1 FOR UPDATE
	`).Scan(&nextID, &maxBatches)
	if err != nil {
		return 0, fmt.Errorf("lock registry config: %w", err)
	}
	if nextID >= maxBatches {
		return 0, sentinel.ErrCapacity
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (
			id, hash, origin, created_height, cert_id, status, product_type,
			quantity, location, currency, expiry, owner, description, price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		nextID, batch.Hash, batch.Origin.String(), int64(batch.Timestamp),
		int64(batch.CertID), batch.Status, string(batch.ProductType),
		int64(batch.Quantity), batch.Location, string(batch.Currency),
		int64(batch.Expiry), batch.Owner.String(), batch.Description,
		int64(batch.Price),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, sentinel.ErrConflict
		}
		return 0, fmt.Errorf("insert batch: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE registry_config SET next_batch_id = next_batch_id + 1 WHERE id = 1
	`); err != nil {
		return 0, fmt.Errorf("advance batch id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert batch: %w", err)
	}
	return uint64(nextID), nil
}

func (p *Postgres) Replace(ctx context.Context, id uint64, hash []byte, quantity uint64, height uint64) (*models.Batch, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace batch: %w", err)
	}
	defer tx.Rollback()

	var locked int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM batches WHERE id = $1 FOR UPDATE
	`, int64(id)).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock batch row: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE batches SET hash = $2, quantity = $3, created_height = $4
		WHERE id = $1
	`, int64(id), hash, int64(quantity), int64(height))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("replace batch fields: %w", err)
	}

	batch, err := scanBatch(tx.QueryRowContext(ctx, selectBatch+` WHERE id = $1`, int64(id)))
	if err != nil {
		return nil, fmt.Errorf("reload replaced batch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace batch: %w", err)
	}
	return batch, nil
}

const selectBatch = `
	SELECT id, hash, origin, created_height, cert_id, status, product_type,
	       quantity, location, currency, expiry, owner, description, price
	FROM batches
`

func (p *Postgres) Get(ctx context.Context, id uint64) (*models.Batch, error) {
	batch, err := scanBatch(p.db.QueryRowContext(ctx, selectBatch+` WHERE id = $1`, int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

func (p *Postgres) IDByHash(ctx context.Context, hash []byte) (uint64, bool, error) {
	var id int64
	err := p.db.QueryRowContext(ctx, `SELECT id FROM batches WHERE hash = $1`, hash).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("resolve batch by hash: %w", err)
	}
	return uint64(id), true, nil
}

func (p *Postgres) ExistsByHash(ctx context.Context, hash []byte) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM batches WHERE hash = $1)
	`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check batch existence: %w", err)
	}
	return exists, nil
}

func (p *Postgres) Count(ctx context.Context) (uint64, error) {
	var next int64
	err := p.db.QueryRowContext(ctx, `SELECT next_batch_id FROM registry_config WHERE id = 1`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("read batch count: %w", err)
	}
	return uint64(next), nil
}

func (p *Postgres) AtCapacity(ctx context.Context) (bool, error) {
	var next, max int64
	err := p.db.QueryRowContext(ctx, `
		SELECT next_batch_id, max_batches FROM registry_config WHERE id = 1
	`).Scan(&next, &max)
	if err != nil {
		return false, fmt.Errorf("read registry capacity: %w", err)
	}
	return next >= max, nil
}

func (p *Postgres) Record(ctx context.Context, update *models.BatchUpdate) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO batch_updates (batch_id, update_hash, update_quantity, update_height, updater)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (batch_id) DO UPDATE SET
			update_hash     = EXCLUDED.update_hash,
			update_quantity = EXCLUDED.update_quantity,
			update_height   = EXCLUDED.update_height,
			updater         = EXCLUDED.updater
	`, int64(update.BatchID), update.UpdateHash, int64(update.UpdateQuantity),
		int64(update.UpdateTimestamp), update.Updater.String())
	if err != nil {
		return fmt.Errorf("record batch update: %w", err)
	}
	return nil
}

func (p *Postgres) Latest(ctx context.Context, id uint64) (*models.BatchUpdate, error) {
	update := &models.BatchUpdate{}
	var batchID, quantity, height int64
	var updater string
	err := p.db.QueryRowContext(ctx, `
		SELECT batch_id, update_hash, update_quantity, update_height, updater
		FROM batch_updates WHERE batch_id = $1
	`, int64(id)).Scan(&batchID, &update.UpdateHash, &quantity, &height, &updater)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("read batch update: %w", err)
	}
	update.BatchID = uint64(batchID)
	update.UpdateQuantity = uint64(quantity)
	update.UpdateTimestamp = uint64(height)
	update.Updater = domain.Principal(updater)
	return update, nil
}

func (p *Postgres) BindAuthority(ctx context.Context, principal domain.Principal) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE registry_config SET authority = $1 WHERE id = 1 AND authority IS NULL
	`, principal.String())
	if err != nil {
		return fmt.Errorf("bind authority: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bind authority result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadySet
	}
	return nil
}

func (p *Postgres) Authority(ctx context.Context) (domain.Principal, bool, error) {
	var authority sql.NullString
	err := p.db.QueryRowContext(ctx, `SELECT authority FROM registry_config WHERE id = 1`).Scan(&authority)
	if err != nil {
		return "", false, fmt.Errorf("read authority: %w", err)
	}
	if !authority.Valid {
		return "", false, nil
	}
	return domain.Principal(authority.String), true, nil
}

func (p *Postgres) SetFee(ctx context.Context, fee uint64) error {
	if _, err := p.db.ExecContext(ctx, `
		UPDATE registry_config SET registration_fee = $1 WHERE id = 1
	`, int64(fee)); err != nil {
		return fmt.Errorf("set registration fee: %w", err)
	}
	return nil
}

func (p *Postgres) Fee(ctx context.Context) (uint64, error) {
	var fee int64
	err := p.db.QueryRowContext(ctx, `SELECT registration_fee FROM registry_config WHERE id = 1`).Scan(&fee)
	if err != nil {
		return 0, fmt.Errorf("read registration fee: %w", err)
	}
	return uint64(fee), nil
}

func scanBatch(row *sql.Row) (*models.Batch, error) {
	var (
		batch                                      models.Batch
		id, height, certID, quantity, expiry, cost int64
		origin, productType, currency, owner       string
	)
	err := row.Scan(
		&id, &batch.Hash, &origin, &height, &certID, &batch.Status,
		&productType, &quantity, &batch.Location, &currency, &expiry,
		&owner, &batch.Description, &cost,
	)
	if err != nil {
		return nil, err
	}
	batch.ID = uint64(id)
	batch.Origin = domain.Principal(origin)
	batch.Timestamp = uint64(height)
	batch.CertID = uint64(certID)
	batch.ProductType = models.ProductType(productType)
	batch.Quantity = uint64(quantity)
	batch.Currency = models.Currency(currency)
	batch.Expiry = uint64(expiry)
	batch.Owner = domain.Principal(owner)
	batch.Price = uint64(cost)
	return &batch, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
