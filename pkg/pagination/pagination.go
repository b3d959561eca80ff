package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
// Clients page with ?page=N&limit=M; offset is derived.
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// FromContext extracts pagination parameters from the echo context.
// An explicit ?offset= wins over ?page=.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}

	offset := (page - 1) * limit
	if raw := c.QueryParam("offset"); raw != "" {
		if o, err := strconv.Atoi(raw); err == nil && o >= 0 {
			offset = o
			page = o/limit + 1
		}
	}

	return Params{Page: page, Limit: limit, Offset: offset}
}

// Response wraps a paginated list.
type Response struct {
	Items       interface{} `json:"items"`
	Total       int         `json:"total"`
	CurrentPage int         `json:"currentPage"`
	TotalPages  int         `json:"totalPages"`
	Limit       int         `json:"limit"`
	HasMore     bool        `json:"hasMore"`
}

func NewResponse(items interface{}, total int, p Params) *Response {
	totalPages := 0
	if p.Limit > 0 {
		totalPages = (total + p.Limit - 1) / p.Limit
	}
	return &Response{
		Items:       items,
		Total:       total,
		CurrentPage: p.Page,
		TotalPages:  totalPages,
		Limit:       p.Limit,
		HasMore:     p.Offset+p.Limit < total,
	}
}
