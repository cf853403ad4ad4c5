// Package postgres provides PostgreSQL database adapters for the listing
// moderation pipeline's Task Store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/blausher/modsvc/internal/domain"
)

// ListingRepo implements domain.ListingRepository over a pgx pool.
type ListingRepo struct{ Pool PgxPool }

// NewListingRepo constructs a ListingRepo.
func NewListingRepo(p PgxPool) *ListingRepo { return &ListingRepo{Pool: p} }

const pgUniqueViolation = "23505"
const pgForeignKeyViolation = "23503"

// CreateSeller inserts a Seller row.
func (r *ListingRepo) CreateSeller(ctx context.Context, id int64, isVerifiedSeller bool) (domain.Seller, error) {
	tracer := otel.Tracer("repo.listings")
	ctx, span := tracer.Start(ctx, "listings.CreateSeller")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", "users"))

	q := `INSERT INTO users (id, is_verified_seller) VALUES ($1, $2)`
	if _, err := r.Pool.Exec(ctx, q, id, isVerifiedSeller); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.Seller{}, fmt.Errorf("op=listing.create_seller: %w", domain.ErrAlreadyExists)
		}
		return domain.Seller{}, fmt.Errorf("op=listing.create_seller: %w", err)
	}
	return domain.Seller{ID: id, IsVerifiedSeller: isVerifiedSeller}, nil
}

// CreateListing inserts a Listing, checking the seller exists first so the
// SellerNotFound/AlreadyExists distinction is observable from one call.
func (r *ListingRepo) CreateListing(ctx context.Context, sellerID, itemID int64, name, description string, category, imagesQty int) (domain.Listing, error) {
	tracer := otel.Tracer("repo.listings")
	ctx, span := tracer.Start(ctx, "listings.CreateListing")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", "advertisements"))

	var verified bool
	err := r.Pool.QueryRow(ctx, `SELECT is_verified_seller FROM users WHERE id=$1`, sellerID).Scan(&verified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, fmt.Errorf("op=listing.create: %w", domain.ErrSellerNotFound)
		}
		return domain.Listing{}, fmt.Errorf("op=listing.create: %w", err)
	}

	q := `INSERT INTO advertisements (item_id, seller_id, name, description, category, images_qty)
	      VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.Pool.Exec(ctx, q, itemID, sellerID, name, description, category, imagesQty); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return domain.Listing{}, fmt.Errorf("op=listing.create: %w", domain.ErrAlreadyExists)
			case pgForeignKeyViolation:
				return domain.Listing{}, fmt.Errorf("op=listing.create: %w", domain.ErrSellerNotFound)
			}
		}
		return domain.Listing{}, fmt.Errorf("op=listing.create: %w", err)
	}

	return domain.Listing{
		ItemID:           itemID,
		SellerID:         sellerID,
		IsVerifiedSeller: verified,
		Name:             name,
		Description:      description,
		Category:         category,
		ImagesQty:        imagesQty,
	}, nil
}

// SelectListing joins advertisements with users for the verified-seller flag.
func (r *ListingRepo) SelectListing(ctx context.Context, itemID int64) (domain.Listing, bool, error) {
	tracer := otel.Tracer("repo.listings")
	ctx, span := tracer.Start(ctx, "listings.SelectListing")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", "advertisements"))

	q := `SELECT a.item_id, a.seller_id, a.name, a.description, a.category, a.images_qty, u.is_verified_seller
	      FROM advertisements AS a JOIN users AS u ON u.id = a.seller_id
	      WHERE a.item_id = $1`
	var l domain.Listing
	err := r.Pool.QueryRow(ctx, q, itemID).Scan(
		&l.ItemID, &l.SellerID, &l.Name, &l.Description, &l.Category, &l.ImagesQty, &l.IsVerifiedSeller,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, false, nil
		}
		return domain.Listing{}, false, fmt.Errorf("op=listing.select: %w", err)
	}
	return l, true, nil
}

// CloseListing deletes the Listing and every Task referencing itemID in one
// transaction, returning the deleted task ids. Absent listing returns
// ok=false and the transaction is rolled back so no orphan task rows are
// removed without the listing itself existing.
func (r *ListingRepo) CloseListing(ctx context.Context, itemID int64) ([]int64, bool, error) {
	tracer := otel.Tracer("repo.listings")
	ctx, span := tracer.Start(ctx, "listings.CloseListing")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", "advertisements"))

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, false, fmt.Errorf("op=listing.close.begin_tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx, `DELETE FROM moderation_results WHERE item_id=$1 RETURNING id`, itemID)
	if err != nil {
		return nil, false, fmt.Errorf("op=listing.close.delete_tasks: %w", err)
	}
	var taskIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, false, fmt.Errorf("op=listing.close.scan_task: %w", err)
		}
		taskIDs = append(taskIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("op=listing.close.rows: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM advertisements WHERE item_id=$1`, itemID)
	if err != nil {
		return nil, false, fmt.Errorf("op=listing.close.delete_listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("op=listing.close.commit: %w", err)
	}
	committed = true
	return taskIDs, true, nil
}
