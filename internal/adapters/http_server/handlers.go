package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"stayfinder/internal/app"
	"stayfinder/internal/domain"
)

type Handlers struct {
	Catalog      *app.CatalogService
	Avail        *app.AvailabilityService
	Bookings     *app.BookingService
	Reviews      *app.ReviewService
	Profiles     domain.ProfileRepository
	Auth         func(http.Handler) http.Handler
	ReserveLimit *rate.Limiter
}

type problem struct {
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Status    int             `json:"status"`
	Detail    string          `json:"detail,omitempty"`
	Conflicts []dateRangeJSON `json:"conflicts,omitempty"`
}

type dateRangeJSON struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

const dateLayout = "2006-01-02"

func rangesJSON(rs []domain.DateRange) []dateRangeJSON {
	out := make([]dateRangeJSON, 0, len(rs))
	for _, r := range rs {
		out = append(out, dateRangeJSON{
			CheckIn:  r.CheckIn.Format(dateLayout),
			CheckOut: r.CheckOut.Format(dateLayout),
		})
	}
	return out
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/properties", h.listProperties)
	s.mux.Get("/v1/properties/{id}", h.getProperty)
	s.mux.Get("/v1/properties/{id}/availability", h.checkAvailability)
	s.mux.Get("/v1/properties/{id}/reviews", h.listReviews)

	s.mux.Group(func(r chi.Router) {
		r.Use(h.Auth)
		if h.ReserveLimit != nil {
			r.With(RateLimit(h.ReserveLimit)).Post("/v1/bookings", h.reserve)
		} else {
			r.Post("/v1/bookings", h.reserve)
		}
		r.Post("/v1/bookings/{id}/cancel", h.cancelBooking)
		r.Get("/v1/me/bookings", h.myBookings)
		r.Get("/v1/host/bookings", h.hostBookings)
		r.Post("/v1/reviews", h.addReview)
		r.Delete("/v1/reviews/{id}", h.deleteReview)
		r.Get("/v1/admin/stats", h.adminStats)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps the domain error taxonomy onto HTTP. A failed lookup is
// 502 "couldn't verify", never a verdict.
func writeError(w http.ResponseWriter, err error) {
	var (
		ve *domain.ValidationError
		ce *domain.ConflictError
		le *domain.LookupError
		we *domain.WriteError
	)
	switch {
	case errors.As(err, &ve):
		writeProblem(w, http.StatusBadRequest, "Invalid Request", ve.Reason)
	case errors.As(err, &ce):
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(problem{
			Type:      "about:blank",
			Title:     "Dates Unavailable",
			Status:    http.StatusConflict,
			Detail:    "the selected dates are already booked",
			Conflicts: rangesJSON(ce.Conflicts),
		})
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", "")
	case errors.As(err, &le):
		writeProblem(w, http.StatusBadGateway, "Lookup Failed", "couldn't verify availability, try again")
	case errors.As(err, &we):
		writeProblem(w, http.StatusInternalServerError, "Write Failed", "reservation could not be saved, try again")
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func session(r *http.Request) domain.Session {
	s, _ := SessionFromContext(r.Context())
	return s
}

// ---- catalog ----

func (h *Handlers) getProperty(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	p, err := h.Catalog.GetProperty(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, propertyJSON(p))
}

func (h *Handlers) listProperties(w http.ResponseWriter, r *http.Request) {
	q := domain.PropertiesQuery{Limit: 50}
	qs := r.URL.Query()
	if v := qs.Get("location"); v != "" {
		q.Location = &v
	}
	if v := qs.Get("type"); v != "" {
		q.Type = &v
	}
	if v := qs.Get("min_price"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			q.MinPrice = &f
		}
	}
	if v := qs.Get("max_price"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			q.MaxPrice = &f
		}
	}
	if v := qs.Get("min_rating"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			q.MinRating = &f
		}
	}
	if v := qs.Get("guests"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			q.Guests = &n
		}
	}
	if v := qs.Get("amenity"); v != "" {
		q.Amenity = &v
	}
	if v := qs.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		q.Limit = n
	}

	page, err := h.Catalog.ListProperties(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]propertyResponse, 0, len(page.Items))
	for _, p := range page.Items {
		items = append(items, propertyJSON(p))
	}
	writeCached(w, r, map[string]any{"items": items})
}

type propertyResponse struct {
	ID            int64    `json:"id"`
	OwnerID       *int64   `json:"owner_id,omitempty"`
	Title         string   `json:"title"`
	Description   *string  `json:"description,omitempty"`
	Location      string   `json:"location"`
	Type          string   `json:"property_type"`
	PricePerNight float64  `json:"price_per_night"`
	Bedrooms      int      `json:"bedrooms"`
	Bathrooms     int      `json:"bathrooms"`
	MaxGuests     int      `json:"max_guests"`
	Amenities     []string `json:"amenities,omitempty"`
	Images        []string `json:"images,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	TotalRatings  int      `json:"total_ratings"`
}

func propertyJSON(p domain.Property) propertyResponse {
	return propertyResponse{
		ID: p.ID, OwnerID: p.OwnerID, Title: p.Title, Description: p.Description,
		Location: p.Location, Type: p.Type, PricePerNight: p.PricePerNight,
		Bedrooms: p.Bedrooms, Bathrooms: p.Bathrooms, MaxGuests: p.MaxGuests,
		Amenities: p.Amenities, Images: p.Images, Rating: p.Rating, TotalRatings: p.TotalRatings,
	}
}

// ---- availability ----

func (h *Handlers) checkAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	parse := func(k string) time.Time {
		t, err := time.Parse(dateLayout, r.URL.Query().Get(k))
		if err != nil {
			return time.Time{}
		}
		return t
	}
	res, err := h.Avail.Check(r.Context(), id, parse("check_in"), parse("check_out"))
	if err != nil {
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			writeError(w, err)
			return
		}
		// malformed dates: indeterminate, not a verdict
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available":     res.Available,
		"indeterminate": res.Indeterminate,
		"conflicts":     rangesJSON(res.Conflicts),
		"checked_at":    res.CheckedAt,
	})
}

// ---- bookings ----

type reserveRequest struct {
	PropertyID int64  `json:"property_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Guests     int    `json:"guests"`
}

type bookingResponse struct {
	ID         int64   `json:"id"`
	PropertyID int64   `json:"property_id"`
	CheckIn    string  `json:"check_in"`
	CheckOut   string  `json:"check_out"`
	Guests     int     `json:"guests"`
	TotalPrice float64 `json:"total_price"`
	Status     string  `json:"status"`
	Completed  bool    `json:"completed,omitempty"`
}

func bookingJSON(b domain.Booking, completed bool) bookingResponse {
	return bookingResponse{
		ID:         b.ID,
		PropertyID: b.PropertyID,
		CheckIn:    b.Dates.CheckIn.Format(dateLayout),
		CheckOut:   b.Dates.CheckOut.Format(dateLayout),
		Guests:     b.Guests,
		TotalPrice: b.TotalPrice,
		Status:     string(b.Status),
		Completed:  completed,
	}
}

func (h *Handlers) reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "body must be JSON")
		return
	}
	parse := func(s string) time.Time {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	b, err := h.Bookings.Reserve(r.Context(), session(r), app.ReserveRequest{
		PropertyID: req.PropertyID,
		CheckIn:    parse(req.CheckIn),
		CheckOut:   parse(req.CheckOut),
		Guests:     req.Guests,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingJSON(b, false))
}

func (h *Handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	if err := h.Bookings.Cancel(r.Context(), session(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) myBookings(w http.ResponseWriter, r *http.Request) {
	views, err := h.Bookings.ListForUser(r.Context(), session(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingsJSON(views))
}

func (h *Handlers) hostBookings(w http.ResponseWriter, r *http.Request) {
	views, err := h.Bookings.ListForHost(r.Context(), session(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingsJSON(views))
}

func bookingsJSON(views []app.BookingView) map[string]any {
	items := make([]bookingResponse, 0, len(views))
	for _, v := range views {
		items = append(items, bookingJSON(v.Booking, v.Completed))
	}
	return map[string]any{"items": items}
}

// ---- reviews ----

type reviewRequest struct {
	BookingID int64   `json:"booking_id"`
	Rating    int     `json:"rating"`
	Comment   *string `json:"comment,omitempty"`
}

func (h *Handlers) addReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "body must be JSON")
		return
	}
	rv, err := h.Reviews.AddReview(r.Context(), session(r), app.ReviewRequest{
		BookingID: req.BookingID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": rv.ID, "property_id": rv.PropertyID, "rating": rv.Rating})
}

func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	if err := h.Reviews.DeleteReview(r.Context(), session(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}

	// newest first; aligns with the index on (property_id, created_at)
	out, err := h.Reviews.ListReviews(r.Context(), id, domain.PageQuery{Limit: limit, Sort: "-created_at"})
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(out.Items))
	for _, rv := range out.Items {
		items = append(items, map[string]any{
			"id":         rv.ID,
			"rating":     rv.Rating,
			"comment":    rv.Comment,
			"author":     rv.Author,
			"created_at": rv.CreatedAt,
		})
	}
	writeCached(w, r, map[string]any{"items": items})
}

// ---- admin ----

func (h *Handlers) adminStats(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	if !sess.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin only")
		return
	}
	stats, err := h.Profiles.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users":      stats.Users,
		"properties": stats.Properties,
		"bookings":   stats.Bookings,
	})
}
