package domain

import "time"

type Property struct {
	ID            int64
	OwnerID       *int64
	Title         string
	Description   *string
	Location      string
	Type          string
	PricePerNight float64
	Bedrooms      int
	Bathrooms     int
	MaxGuests     int
	Amenities     []string
	Images        []string
	Rating        *float64
	TotalRatings  int
	CreatedAt     time.Time
}

type PropertiesQuery struct {
	Location  *string
	Type      *string
	MinPrice  *float64
	MaxPrice  *float64
	MinRating *float64
	Guests    *int
	Amenity   *string
	Limit     int
	Cursor    *string
}

type PageQuery struct {
	Limit  int
	Cursor *string
	Sort   string
}

type PropertiesPage struct {
	Items      []Property
	NextCursor *string
}

type ReviewsPage struct {
	Items      []Review
	NextCursor *string
}

// Stats backs the admin panel's headline numbers.
type Stats struct {
	Users      int64
	Properties int64
	Bookings   int64
}
