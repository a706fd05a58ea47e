package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"

	"stayfinder/internal/domain"
)

// CreateIfFree is the authoritative conflict gate: the overlap check and the
// insert run inside one transaction, so two clients racing for the same
// range serialize here and exactly one insert wins. Gap locks on the date
// index can deadlock concurrent transactions; the loser is rolled back by
// InnoDB and retried here.
func (r *Repo) CreateIfFree(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		created, err := r.createIfFree(ctx, b)
		if err == nil || !retryableTxErr(err) {
			return created, err
		}
		lastErr = err
	}
	return domain.Booking{}, lastErr
}

// retryableTxErr matches deadlock (1213) and lock-wait-timeout (1205)
// rollbacks, which are safe to re-run from the top of the transaction.
func retryableTxErr(err error) bool {
	var me *mysqldrv.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1205 || me.Number == 1213
	}
	return false
}

func (r *Repo) createIfFree(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Booking{}, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, selectOverlappingForUpdateSQL,
		b.PropertyID, b.Dates.CheckOut, b.Dates.CheckIn)
	if err != nil {
		return domain.Booking{}, err
	}
	var conflicts []domain.DateRange
	for rows.Next() {
		var in, out time.Time
		if err := rows.Scan(&in, &out); err != nil {
			rows.Close()
			return domain.Booking{}, err
		}
		conflicts = append(conflicts, domain.DateRange{
			CheckIn:  domain.Midnight(in),
			CheckOut: domain.Midnight(out),
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Booking{}, err
	}
	if len(conflicts) > 0 {
		return domain.Booking{}, &domain.ConflictError{Conflicts: conflicts}
	}

	res, err := tx.ExecContext(ctx, insertBookingSQL,
		b.PropertyID, b.UserID, b.Dates.CheckIn, b.Dates.CheckOut,
		b.Guests, b.TotalPrice, string(b.Status))
	if err != nil {
		return domain.Booking{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Booking{}, err
	}
	created, err := scanBooking(tx.QueryRowContext(ctx, getBookingSQL, id))
	if err != nil {
		return domain.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Booking{}, err
	}
	return created, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) error {
	res, err := r.db.ExecContext(ctx, updateBookingStatusSQL, string(status), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// status may be unchanged; distinguish a missing row
		var one int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, id).Scan(&one); err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
	}
	return nil
}

// ExpirePending soft-cancels pending holds created before cutoff and returns
// them so the caller can invalidate per-property availability.
func (r *Repo) ExpirePending(ctx context.Context, cutoff time.Time) ([]domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, selectExpiredPendingSQL, cutoff)
	if err != nil {
		return nil, err
	}
	var expired []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		expired = append(expired, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, tx.Commit()
	}

	placeholders := make([]string, len(expired))
	args := make([]any, len(expired))
	for i, b := range expired {
		placeholders[i] = "?"
		args[i] = b.ID
	}
	q := "UPDATE bookings SET status = 'canceled' WHERE id IN (" + strings.Join(placeholders, ",") + ")"
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	for i := range expired {
		expired[i].Status = domain.StatusCanceled
	}
	return expired, nil
}

func (r *Repo) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	return scanBooking(r.db.QueryRowContext(ctx, getBookingSQL, id))
}

func (r *Repo) ListActiveByProperty(ctx context.Context, propertyID int64) ([]domain.Booking, error) {
	return r.listBookings(ctx, listActiveByPropertySQL, propertyID)
}

func (r *Repo) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	return r.listBookings(ctx, listBookingsByUserSQL, userID)
}

func (r *Repo) ListByHost(ctx context.Context, hostID int64) ([]domain.Booking, error) {
	return r.listBookings(ctx, listBookingsByHostSQL, hostID)
}

func (r *Repo) listBookings(ctx context.Context, query string, arg any) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanBooking(row rowScanner) (domain.Booking, error) {
	var b domain.Booking
	var status string
	var checkIn, checkOut time.Time
	if err := row.Scan(
		&b.ID,
		&b.PropertyID,
		&b.UserID,
		&checkIn,
		&checkOut,
		&b.Guests,
		&b.TotalPrice,
		&status,
		&b.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.Booking{}, domain.ErrNotFound
		}
		return domain.Booking{}, err
	}
	b.Dates = domain.DateRange{CheckIn: domain.Midnight(checkIn), CheckOut: domain.Midnight(checkOut)}
	b.Status = domain.BookingStatus(status)
	return b, nil
}
