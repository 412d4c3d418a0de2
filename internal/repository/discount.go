package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/discount"
)

const (
	discountColumns = `code, type, value, description, allow_auto_apply, product_ids, category_ids,
		min_order_amount, max_usage, used_count, starts_at, expires_at, status,
		first_order_only, referral_code, created_at`

	findDiscountByCodeSQL = `SELECT ` + discountColumns + `
		FROM discounts WHERE UPPER(code) = UPPER($1)`

	listLiveDiscountsSQL = `SELECT ` + discountColumns + `
		FROM discounts
		WHERE status IN ('active', 'scheduled')
		  AND (starts_at IS NULL OR starts_at <= $1)
		  AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY created_at, code`

	disableExpiredSQL = `UPDATE discounts SET status = 'disabled'
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < $1`

	activateScheduledSQL = `UPDATE discounts SET status = 'active'
		WHERE status = 'scheduled' AND (starts_at IS NULL OR starts_at <= $1)`

	upsertDiscountSQL = `INSERT INTO discounts (code, type, value, description, allow_auto_apply,
		product_ids, category_ids, min_order_amount, max_usage, starts_at, expires_at, status,
		first_order_only, referral_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT ((UPPER(code))) DO UPDATE SET
			code = EXCLUDED.code,
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			description = EXCLUDED.description,
			allow_auto_apply = EXCLUDED.allow_auto_apply,
			product_ids = EXCLUDED.product_ids,
			category_ids = EXCLUDED.category_ids,
			min_order_amount = EXCLUDED.min_order_amount,
			max_usage = EXCLUDED.max_usage,
			starts_at = EXCLUDED.starts_at,
			expires_at = EXCLUDED.expires_at,
			status = EXCLUDED.status,
			first_order_only = EXCLUDED.first_order_only,
			referral_code = EXCLUDED.referral_code`
)

var (
	_ discount.Repository  = (*DiscountRepository)(nil)
	_ discount.StatusStore = (*DiscountRepository)(nil)
)

// DiscountRepository implements the discount store backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks a discount up by code, case-insensitively, regardless of
// its status.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Discount, error) {
	rows, err := r.pool.Query(ctx, findDiscountByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find discount %q", code)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find discount %q", code)
	}
	return &d, nil
}

// ListLive returns the catalog: active or scheduled discounts that have
// started and do not expire at or before now, oldest first.
func (r *DiscountRepository) ListLive(ctx context.Context, now time.Time) ([]discount.Discount, error) {
	rows, err := r.pool.Query(ctx, listLiveDiscountsSQL, now)
	if err != nil {
		return nil, errors.Wrap(err, "list live discounts")
	}
	return pgx.CollectRows(rows, scanDiscount)
}

// DisableExpired moves active discounts whose expiry has passed to disabled.
func (r *DiscountRepository) DisableExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, disableExpiredSQL, now)
	if err != nil {
		return 0, errors.Wrap(err, "disable expired discounts")
	}
	return tag.RowsAffected(), nil
}

// ActivateScheduled moves scheduled discounts whose start has come to active.
func (r *DiscountRepository) ActivateScheduled(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, activateScheduledSQL, now)
	if err != nil {
		return 0, errors.Wrap(err, "activate scheduled discounts")
	}
	return tag.RowsAffected(), nil
}

// Upsert inserts or replaces discount definitions in one batch. Usage
// counters and creation times of existing rows are preserved.
func (r *DiscountRepository) Upsert(ctx context.Context, ds []discount.Discount) error {
	if len(ds) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for i := range ds {
		d := &ds[i]

		var minOrder decimal.NullDecimal
		if d.MinOrderAmount != nil {
			minOrder = decimal.NewNullDecimal(*d.MinOrderAmount)
		}
		var maxUsage *int32
		if d.MaxUsage != nil {
			v := int32(*d.MaxUsage)
			maxUsage = &v
		}
		status := d.Status
		if status == "" {
			status = discount.StatusActive
		}

		b.Queue(upsertDiscountSQL,
			discount.NormalizeCode(d.Code), string(d.Type), d.Value, d.Description, d.AllowAutoApply,
			nonNil(d.ProductIDs), nonNil(d.CategoryIDs), minOrder, maxUsage, d.StartsAt, d.ExpiresAt,
			string(status), d.FirstOrderOnly, d.ReferralCode,
		)
	}

	if err := sendBatch(ctx, r.pool, b); err != nil {
		return errors.Wrap(err, "upsert discounts")
	}
	return nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d        discount.Discount
		typ      string
		status   string
		minOrder decimal.NullDecimal
		maxUsage *int32
		used     int32
	)
	err := row.Scan(
		&d.Code, &typ, &d.Value, &d.Description, &d.AllowAutoApply, &d.ProductIDs, &d.CategoryIDs,
		&minOrder, &maxUsage, &used, &d.StartsAt, &d.ExpiresAt, &status,
		&d.FirstOrderOnly, &d.ReferralCode, &d.CreatedAt,
	)
	if err != nil {
		return d, err
	}

	d.Type = discount.Type(typ)
	d.Status = discount.Status(status)
	d.UsedCount = int(used)
	if minOrder.Valid {
		d.MinOrderAmount = &minOrder.Decimal
	}
	if maxUsage != nil {
		v := int(*maxUsage)
		d.MaxUsage = &v
	}
	return d, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
