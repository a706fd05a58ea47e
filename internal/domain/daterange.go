package domain

import "time"

const dateLayout = "2006-01-02"

// DateRange is a half-open [CheckIn, CheckOut) interval at day granularity.
// Both bounds are UTC midnights; CheckOut is the day the guest leaves, so a
// range ending on a given day does not occupy that day's night.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// NewDateRange normalizes both dates to UTC midnight and requires checkOut
// strictly after checkIn.
func NewDateRange(checkIn, checkOut time.Time) (DateRange, error) {
	if checkIn.IsZero() || checkOut.IsZero() {
		return DateRange{}, Invalid("check-in and check-out dates are required")
	}
	r := DateRange{CheckIn: Midnight(checkIn), CheckOut: Midnight(checkOut)}
	if !r.CheckOut.After(r.CheckIn) {
		return DateRange{}, Invalid("check-out must be after check-in")
	}
	return r, nil
}

// Midnight truncates t to its UTC calendar day.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Day builds a UTC midnight for a calendar date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func (r DateRange) IsZero() bool { return r.CheckIn.IsZero() && r.CheckOut.IsZero() }

// Overlaps reports whether two half-open ranges intersect. Ranges that only
// touch at a boundary do not overlap: same-day turnover is allowed.
func (r DateRange) Overlaps(o DateRange) bool {
	return r.CheckIn.Before(o.CheckOut) && o.CheckIn.Before(r.CheckOut)
}

// Nights is the number of nights the range occupies.
func (r DateRange) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn) / (24 * time.Hour))
}

func (r DateRange) String() string {
	return r.CheckIn.Format(dateLayout) + ".." + r.CheckOut.Format(dateLayout)
}
