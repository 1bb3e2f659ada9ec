package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/event-offer-pricing/internal/domain"
	"github.com/robertarktes/event-offer-pricing/internal/observability"
	"github.com/shopspring/decimal"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
)

const offerColumns = `id, event_id, offer_type, title, description, price_adjustment::TEXT,
	min_quantity, max_quantity, group_size, is_active, valid_from, valid_until, created_at, updated_at`

type Repository struct {
	pool   *pgxpool.Pool
	logger observability.Logger
}

func NewRepository(pool *pgxpool.Pool, logger observability.Logger) *Repository {
	return &Repository{pool: pool, logger: logger}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return errors.Wrap(err, "set isolation")
	}

	if err := fn(tx); err != nil {
		return mapPgError(err)
	}

	return mapPgError(tx.Commit(ctx))
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case SerializationFailureCode:
			return domain.ErrSerializationFailure
		case UniqueViolationCode:
			return errors.Wrap(domain.ErrConflict, pgErr.Message)
		}
	}
	return err
}

func (r *Repository) InsertOffer(ctx context.Context, tx pgx.Tx, o domain.Offer) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO offers (id, event_id, offer_type, title, description, price_adjustment,
			min_quantity, max_quantity, group_size, is_active, valid_from, valid_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::TEXT::NUMERIC, $7, $8, $9, $10, $11, $12, $13, $13)
	`, o.ID, o.EventID, string(o.Type), o.Title, o.Description, o.PriceAdjustment.String(),
		o.MinQuantity, o.MaxQuantity, o.GroupSize, o.IsActive, o.ValidFrom, o.ValidUntil, o.CreatedAt)
	return errors.Wrap(err, "insert offer")
}

func (r *Repository) UpdateOffer(ctx context.Context, tx pgx.Tx, o domain.Offer) error {
	result, err := tx.Exec(ctx, `
		UPDATE offers SET offer_type = $2, title = $3, description = $4, price_adjustment = $5::TEXT::NUMERIC,
			min_quantity = $6, max_quantity = $7, group_size = $8, is_active = $9,
			valid_from = $10, valid_until = $11, updated_at = $12
		WHERE id = $1
	`, o.ID, string(o.Type), o.Title, o.Description, o.PriceAdjustment.String(),
		o.MinQuantity, o.MaxQuantity, o.GroupSize, o.IsActive, o.ValidFrom, o.ValidUntil, o.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "update offer")
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteOffer(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.Offer, error) {
	row := tx.QueryRow(ctx, `DELETE FROM offers WHERE id = $1 RETURNING `+offerColumns, id)
	return r.scanChangedOffer(row)
}

// ToggleOffer flips is_active and returns the offer as stored afterwards.
func (r *Repository) ToggleOffer(ctx context.Context, tx pgx.Tx, id uuid.UUID, now time.Time) (domain.Offer, error) {
	row := tx.QueryRow(ctx, `
		UPDATE offers SET is_active = NOT is_active, updated_at = $2
		WHERE id = $1
		RETURNING `+offerColumns, id, now)
	return r.scanChangedOffer(row)
}

func (r *Repository) GetOffer(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id)
	o, err := scanOffer(row)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOffers returns the event's offers in creation order. Rows that no longer
// parse are logged and left out instead of failing the whole list.
func (r *Repository) ListOffers(ctx context.Context, eventID uuid.UUID) ([]domain.Offer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+offerColumns+` FROM offers WHERE event_id = $1 ORDER BY created_at ASC, id ASC
	`, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "query offers")
	}
	defer rows.Close()

	offers := []domain.Offer{}
	for rows.Next() {
		in, err := scanOfferInput(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan offer")
		}
		o, err := domain.ParseOffer(in)
		if err != nil {
			r.logger.WithField("offer_id", in.ID).Warn("skipping malformed offer: ", err)
			continue
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// ExpireOffers deactivates every active offer whose window closed before now
// and returns them, malformed rows included.
func (r *Repository) ExpireOffers(ctx context.Context, tx pgx.Tx, now time.Time) ([]domain.Offer, error) {
	rows, err := tx.Query(ctx, `
		UPDATE offers SET is_active = false, updated_at = $1
		WHERE is_active AND valid_until IS NOT NULL AND valid_until < $1
		RETURNING `+offerColumns, now)
	if err != nil {
		return nil, errors.Wrap(err, "expire offers")
	}
	defer rows.Close()

	var expired []domain.Offer
	for rows.Next() {
		in, err := scanOfferInput(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan offer")
		}
		expired = append(expired, r.changedOffer(in))
	}
	return expired, rows.Err()
}

func scanOfferInput(row pgx.Row) (domain.OfferInput, error) {
	var in domain.OfferInput
	err := row.Scan(&in.ID, &in.EventID, &in.OfferType, &in.Title, &in.Description, &in.PriceAdjustment,
		&in.MinQuantity, &in.MaxQuantity, &in.GroupSize, &in.IsActive, &in.ValidFrom, &in.ValidUntil,
		&in.CreatedAt, &in.UpdatedAt)
	return in, err
}

func scanOffer(row pgx.Row) (domain.Offer, error) {
	in, err := scanOfferInput(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Offer{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Offer{}, errors.Wrap(err, "scan offer")
	}
	return domain.ParseOffer(in)
}

// scanChangedOffer reads the row a write statement returned. The write has
// already happened, so a row that no longer parses still comes back.
func (r *Repository) scanChangedOffer(row pgx.Row) (domain.Offer, error) {
	in, err := scanOfferInput(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Offer{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Offer{}, errors.Wrap(err, "scan offer")
	}
	return r.changedOffer(in), nil
}

func (r *Repository) changedOffer(in domain.OfferInput) domain.Offer {
	o, err := domain.ParseOffer(in)
	if err == nil {
		return o
	}
	r.logger.WithField("offer_id", in.ID).Warn("changed malformed offer: ", err)
	return rawOffer(in)
}

// rawOffer copies whatever a malformed record holds into an Offer.
func rawOffer(in domain.OfferInput) domain.Offer {
	o := domain.Offer{
		ID:          in.ID,
		EventID:     in.EventID,
		Type:        domain.OfferType(in.OfferType),
		Title:       in.Title,
		Description: in.Description,
		MaxQuantity: in.MaxQuantity,
		ValidFrom:   in.ValidFrom,
		ValidUntil:  in.ValidUntil,
		CreatedAt:   in.CreatedAt,
		UpdatedAt:   in.UpdatedAt,
	}
	if in.PriceAdjustment != nil {
		if adj, err := decimal.NewFromString(*in.PriceAdjustment); err == nil {
			o.PriceAdjustment = adj
		}
	}
	if in.MinQuantity != nil {
		o.MinQuantity = *in.MinQuantity
	}
	if in.GroupSize != nil {
		o.GroupSize = *in.GroupSize
	}
	if in.IsActive != nil {
		o.IsActive = *in.IsActive
	}
	return o
}
