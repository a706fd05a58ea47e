package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"stayfinder/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

func (r *Repo) UpsertProperty(ctx context.Context, p domain.Property) error {
	amen, _ := json.Marshal(p.Amenities)
	imgs, _ := json.Marshal(p.Images)
	_, err := r.db.ExecContext(ctx, upsertPropertySQL,
		p.ID,
		valInt64(p.OwnerID),
		p.Title,
		valStr(p.Description),
		p.Location,
		p.Type,
		p.PricePerNight,
		p.Bedrooms,
		p.Bathrooms,
		p.MaxGuests,
		string(amen),
		string(imgs),
	)
	return err
}

func (r *Repo) GetProperty(ctx context.Context, id int64) (domain.Property, error) {
	return scanProperty(r.db.QueryRowContext(ctx, getPropertySQL, id))
}

func (r *Repo) ListProperties(ctx context.Context, q domain.PropertiesQuery) (domain.PropertiesPage, error) {
	var (
		where = []string{"price_per_night > 0"}
		args  []any
	)
	if q.Location != nil {
		where = append(where, "location LIKE ?")
		args = append(args, "%"+*q.Location+"%")
	}
	if q.Type != nil {
		where = append(where, "property_type = ?")
		args = append(args, *q.Type)
	}
	if q.MinPrice != nil {
		where = append(where, "price_per_night >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		where = append(where, "price_per_night <= ?")
		args = append(args, *q.MaxPrice)
	}
	if q.MinRating != nil {
		where = append(where, "rating >= ?")
		args = append(args, *q.MinRating)
	}
	if q.Guests != nil {
		where = append(where, "max_guests >= ?")
		args = append(args, *q.Guests)
	}
	if q.Amenity != nil {
		where = append(where, "JSON_CONTAINS(amenities, JSON_QUOTE(?))")
		args = append(args, *q.Amenity)
	}
	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)

	query := `
SELECT
  id, owner_id, title, description, location, property_type, price_per_night,
  bedrooms, bathrooms, max_guests, amenities, images, rating, total_ratings, created_at
FROM properties
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY id
LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.PropertiesPage{}, err
	}
	defer rows.Close()

	var out []domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return domain.PropertiesPage{}, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return domain.PropertiesPage{}, err
	}
	return domain.PropertiesPage{Items: out}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (domain.Property, error) {
	var p domain.Property
	var (
		ownerID       sql.NullInt64
		desc          sql.NullString
		rating        sql.NullFloat64
		totalRatings  sql.NullInt64
		amenitiesJSON []byte
		imagesJSON    []byte
	)
	if err := row.Scan(
		&p.ID,
		&ownerID,
		&p.Title,
		&desc,
		&p.Location,
		&p.Type,
		&p.PricePerNight,
		&p.Bedrooms,
		&p.Bathrooms,
		&p.MaxGuests,
		&amenitiesJSON,
		&imagesJSON,
		&rating,
		&totalRatings,
		&p.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.Property{}, domain.ErrNotFound
		}
		return domain.Property{}, err
	}
	if ownerID.Valid {
		v := ownerID.Int64
		p.OwnerID = &v
	}
	if desc.Valid {
		s := desc.String
		p.Description = &s
	}
	if rating.Valid {
		f := rating.Float64
		p.Rating = &f
	}
	if totalRatings.Valid {
		p.TotalRatings = int(totalRatings.Int64)
	}
	_ = json.Unmarshal(amenitiesJSON, &p.Amenities)
	_ = json.Unmarshal(imagesJSON, &p.Images)
	return p, nil
}

// ---------------------------------------------------------------------------
// Reviews
// ---------------------------------------------------------------------------

func (r *Repo) InsertReview(ctx context.Context, rv domain.Review) (domain.Review, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Review{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, insertReviewSQL,
		rv.PropertyID, rv.BookingID, rv.UserID, rv.Rating, valStr(rv.Comment))
	if err != nil {
		return domain.Review{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Review{}, err
	}
	if _, err := tx.ExecContext(ctx, refreshRatingSQL, rv.PropertyID, rv.PropertyID, rv.PropertyID); err != nil {
		return domain.Review{}, err
	}

	created, err := scanReview(tx.QueryRowContext(ctx, getReviewSQL, id))
	if err != nil {
		return domain.Review{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Review{}, err
	}
	return created, nil
}

func (r *Repo) DeleteReview(ctx context.Context, id int64) error {
	rv, err := r.GetReview(ctx, id)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deleteReviewSQL, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, refreshRatingSQL, rv.PropertyID, rv.PropertyID, rv.PropertyID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repo) GetReview(ctx context.Context, id int64) (domain.Review, error) {
	return scanReview(r.db.QueryRowContext(ctx, getReviewSQL, id))
}

func (r *Repo) HasReviewed(ctx context.Context, bookingID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, hasReviewedSQL, bookingID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repo) ListReviews(ctx context.Context, propertyID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	limit := pg.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, propertyID, limit)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var rv domain.Review
		var comment, author sql.NullString
		if err := rows.Scan(
			&rv.ID,
			&rv.PropertyID,
			&rv.BookingID,
			&rv.UserID,
			&rv.Rating,
			&comment,
			&author,
			&rv.CreatedAt,
		); err != nil {
			return domain.ReviewsPage{}, err
		}
		if comment.Valid {
			s := comment.String
			rv.Comment = &s
		}
		if author.Valid {
			s := author.String
			rv.Author = &s
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return domain.ReviewsPage{}, err
	}
	return domain.ReviewsPage{Items: out}, nil
}

func scanReview(row rowScanner) (domain.Review, error) {
	var rv domain.Review
	var comment sql.NullString
	if err := row.Scan(&rv.ID, &rv.PropertyID, &rv.BookingID, &rv.UserID, &rv.Rating, &comment, &rv.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.Review{}, domain.ErrNotFound
		}
		return domain.Review{}, err
	}
	if comment.Valid {
		s := comment.String
		rv.Comment = &s
	}
	return rv, nil
}

// ---------------------------------------------------------------------------
// Profiles
// ---------------------------------------------------------------------------

func (r *Repo) GetProfile(ctx context.Context, id int64) (domain.Profile, error) {
	var p domain.Profile
	var email, name, avatar, status sql.NullString
	var role string
	err := r.db.QueryRowContext(ctx, getProfileSQL, id).Scan(
		&p.ID, &email, &name, &avatar, &role, &status, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, err
	}
	if email.Valid {
		s := email.String
		p.Email = &s
	}
	if name.Valid {
		s := name.String
		p.Name = &s
	}
	if avatar.Valid {
		s := avatar.String
		p.AvatarURL = &s
	}
	if status.Valid {
		s := status.String
		p.Status = &s
	}
	p.Role = domain.Role(role)
	return p, nil
}

func (r *Repo) Stats(ctx context.Context) (domain.Stats, error) {
	var s domain.Stats
	if err := r.db.QueryRowContext(ctx, statsSQL).Scan(&s.Users, &s.Properties, &s.Bookings); err != nil {
		return domain.Stats{}, err
	}
	return s, nil
}
