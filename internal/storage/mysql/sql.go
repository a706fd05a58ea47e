package mysql

const upsertPropertySQL = `
INSERT INTO properties
  (id, owner_id, title, description, location, property_type, price_per_night,
   bedrooms, bathrooms, max_guests, amenities, images)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  owner_id        = VALUES(owner_id),
  title           = VALUES(title),
  description     = VALUES(description),
  location        = VALUES(location),
  property_type   = VALUES(property_type),
  price_per_night = VALUES(price_per_night),
  bedrooms        = VALUES(bedrooms),
  bathrooms       = VALUES(bathrooms),
  max_guests      = VALUES(max_guests),
  amenities       = VALUES(amenities),
  images          = VALUES(images),
  updated_at      = CURRENT_TIMESTAMP
`

const getPropertySQL = `
SELECT
  id, owner_id, title, description, location, property_type, price_per_night,
  bedrooms, bathrooms, max_guests, amenities, images, rating, total_ratings, created_at
FROM properties
WHERE id = ?
`

// -----------------------------------------------------------------------------
// BOOKINGS
// -----------------------------------------------------------------------------

const bookingColumns = `id, property_id, user_id, check_in, check_out, guests, total_price, status, created_at`

// Half-open overlap: existing.check_in < candidate.check_out AND
// candidate.check_in < existing.check_out. Pending and confirmed both gate
// the write; canceled rows never do. FOR UPDATE relies on InnoDB next-key
// locks over idx_bookings_property_dates so a concurrent insert into the
// same range blocks until this transaction decides.
const selectOverlappingForUpdateSQL = `
SELECT check_in, check_out
FROM bookings
WHERE property_id = ?
  AND status IN ('pending', 'confirmed')
  AND check_in < ?
  AND ? < check_out
FOR UPDATE
`

const insertBookingSQL = `
INSERT INTO bookings
  (property_id, user_id, check_in, check_out, guests, total_price, status)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

const getBookingSQL = `
SELECT ` + bookingColumns + `
FROM bookings
WHERE id = ?
`

const listActiveByPropertySQL = `
SELECT ` + bookingColumns + `
FROM bookings
WHERE property_id = ? AND status <> 'canceled'
ORDER BY check_in
`

const listBookingsByUserSQL = `
SELECT ` + bookingColumns + `
FROM bookings
WHERE user_id = ?
ORDER BY check_in DESC, id DESC
`

const listBookingsByHostSQL = `
SELECT b.id, b.property_id, b.user_id, b.check_in, b.check_out, b.guests, b.total_price, b.status, b.created_at
FROM bookings b
JOIN properties p ON p.id = b.property_id
WHERE p.owner_id = ?
ORDER BY b.check_in DESC, b.id DESC
`

const updateBookingStatusSQL = `
UPDATE bookings SET status = ? WHERE id = ?
`

const selectExpiredPendingSQL = `
SELECT ` + bookingColumns + `
FROM bookings
WHERE status = 'pending' AND created_at < ?
FOR UPDATE
`

// -----------------------------------------------------------------------------
// REVIEWS & PROFILES
// -----------------------------------------------------------------------------

const insertReviewSQL = `
INSERT INTO reviews (property_id, booking_id, user_id, rating, comment)
VALUES (?, ?, ?, ?, ?)
`

const deleteReviewSQL = `
DELETE FROM reviews WHERE id = ?
`

const getReviewSQL = `
SELECT id, property_id, booking_id, user_id, rating, comment, created_at
FROM reviews
WHERE id = ?
`

const hasReviewedSQL = `
SELECT 1 FROM reviews WHERE booking_id = ? LIMIT 1
`

const listReviewsSQL = `
SELECT r.id, r.property_id, r.booking_id, r.user_id, r.rating, r.comment, pr.name, r.created_at
FROM reviews r
LEFT JOIN profiles pr ON pr.id = r.user_id
WHERE r.property_id = ?
ORDER BY r.created_at DESC, r.id DESC
LIMIT ?
`

// Keeps the denormalized aggregate on the property row in step with its
// reviews after every insert/delete.
const refreshRatingSQL = `
UPDATE properties
SET rating        = (SELECT AVG(rating) FROM reviews WHERE property_id = ?),
    total_ratings = (SELECT COUNT(*) FROM reviews WHERE property_id = ?)
WHERE id = ?
`

const getProfileSQL = `
SELECT id, email, name, avatar_url, role, status, created_at
FROM profiles
WHERE id = ?
`

const statsSQL = `
SELECT
  (SELECT COUNT(*) FROM profiles),
  (SELECT COUNT(*) FROM properties),
  (SELECT COUNT(*) FROM bookings)
`
