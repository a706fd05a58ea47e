package domain

import "time"

type Review struct {
	ID         int64
	PropertyID int64
	BookingID  int64
	UserID     int64
	Rating     int // 1..5
	Comment    *string
	Author     *string // denormalized profile name for list reads
	CreatedAt  time.Time
}
