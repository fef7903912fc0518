package pipeline

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"product_catalog/internal/apperr"
)

const (
	DefaultPage      = 1
	DefaultLimit     = 10
	MaxLimit         = 100
	DefaultSortBy    = "createdAt"
	DefaultSortOrder = "desc"

	dateLayout = "2006-01-02"
)

// MaxPage keeps page*limit and the row offset within int64
const MaxPage = math.MaxInt64 / MaxLimit

// ListOptions enumerates every recognized listing option. Zero values mean
// "not given"; exact Price, Quantity and CreatedAt take precedence over
// their range counterparts.
type ListOptions struct {
	Search   string
	Name     string
	Category string

	Price    *float64
	MinPrice *float64
	MaxPrice *float64

	Quantity    *int64
	MinQuantity *int64
	MaxQuantity *int64

	// Dates are calendar days in UTC
	CreatedAt *time.Time
	StartDate *time.Time
	EndDate   *time.Time

	SortBy    string
	SortOrder string
	Page      int64
	Limit     int64
}

// WithDefaults fills unset sort and pagination options
func (o ListOptions) WithDefaults() ListOptions {
	if o.SortBy == "" {
		o.SortBy = DefaultSortBy
	}
	if o.SortOrder == "" {
		o.SortOrder = DefaultSortOrder
	}
	if o.Page < 1 {
		o.Page = DefaultPage
	}
	if o.Limit < 1 {
		o.Limit = DefaultLimit
	}
	return o
}

var listQueryKeys = map[string]struct{}{
	"search": {}, "name": {}, "category": {},
	"price": {}, "minPrice": {}, "maxPrice": {},
	"quantity": {}, "minQuantity": {}, "maxQuantity": {},
	"createdAt": {}, "startDate": {}, "endDate": {},
	"sortBy": {}, "sortOrder": {}, "page": {}, "limit": {},
}

// ParseListQuery converts raw query parameters into ListOptions. Unknown keys
// and malformed values are rejected with field-level detail.
func ParseListQuery(q url.Values) (ListOptions, error) {
	var opts ListOptions
	fields := map[string]string{}

	for key := range q {
		if _, ok := listQueryKeys[key]; !ok {
			fields[key] = "unknown parameter"
		}
	}

	opts.Search = strings.TrimSpace(q.Get("search"))
	opts.Name = strings.TrimSpace(q.Get("name"))
	opts.Category = strings.TrimSpace(q.Get("category"))

	opts.Price = parseFloat(q, "price", fields)
	opts.MinPrice = parseFloat(q, "minPrice", fields)
	opts.MaxPrice = parseFloat(q, "maxPrice", fields)

	opts.Quantity = parseInt(q, "quantity", fields)
	opts.MinQuantity = parseInt(q, "minQuantity", fields)
	opts.MaxQuantity = parseInt(q, "maxQuantity", fields)

	opts.CreatedAt = parseDate(q, "createdAt", fields)
	opts.StartDate = parseDate(q, "startDate", fields)
	opts.EndDate = parseDate(q, "endDate", fields)

	if v := q.Get("sortBy"); v != "" {
		if _, ok := SortableFields[v]; !ok {
			fields["sortBy"] = "must be one of name, price, quantity, category, createdAt, updatedAt"
		}
		opts.SortBy = v
	}
	opts.SortOrder = q.Get("sortOrder")

	if p := parseInt(q, "page", fields); p != nil {
		if *p < 1 || *p > MaxPage {
			fields["page"] = fmt.Sprintf("must be between 1 and %d", MaxPage)
		}
		opts.Page = *p
	}
	if l := parseInt(q, "limit", fields); l != nil {
		if *l < 1 || *l > MaxLimit {
			fields["limit"] = "must be between 1 and " + strconv.Itoa(MaxLimit)
		}
		opts.Limit = *l
	}

	if len(fields) > 0 {
		return ListOptions{}, apperr.Validation("invalid query parameters", fields)
	}
	return opts.WithDefaults(), nil
}

func parseFloat(q url.Values, key string, fields map[string]string) *float64 {
	raw := q.Get(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		fields[key] = "must be a number"
		return nil
	}
	return &v
}

func parseInt(q url.Values, key string, fields map[string]string) *int64 {
	raw := q.Get(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fields[key] = "must be an integer"
		return nil
	}
	return &v
}

// parseDate accepts YYYY-MM-DD or RFC3339 and keeps only the UTC calendar day
func parseDate(q url.Values, key string, fields map[string]string) *time.Time {
	raw := q.Get(key)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			fields[key] = "must be a date in YYYY-MM-DD format"
			return nil
		}
	}
	day := StartOfDay(t)
	return &day
}

// StartOfDay is 00:00:00.000 UTC of t's UTC calendar day
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay is 23:59:59.999 UTC of t's UTC calendar day
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Millisecond)
}
