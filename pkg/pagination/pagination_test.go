package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(target string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return FromContext(e.NewContext(req, rec))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor("/")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Page != 1 || p.Offset != 0 {
		t.Errorf("expected page 1 offset 0, got page %d offset %d", p.Page, p.Offset)
	}
}

func TestFromContext_Page(t *testing.T) {
	p := paramsFor("/?page=3&limit=20")
	if p.Offset != 40 {
		t.Errorf("expected offset 40, got %d", p.Offset)
	}
	if p.Page != 3 {
		t.Errorf("expected page 3, got %d", p.Page)
	}
}

func TestFromContext_ExplicitOffset(t *testing.T) {
	p := paramsFor("/?limit=10&offset=25")
	if p.Offset != 25 {
		t.Errorf("expected offset 25, got %d", p.Offset)
	}
	if p.Page != 3 {
		t.Errorf("expected page 3, got %d", p.Page)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := paramsFor("/?limit=5000")
	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_InvalidValues(t *testing.T) {
	p := paramsFor("/?limit=abc&page=-2")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit, got %d", p.Limit)
	}
	if p.Page != 1 {
		t.Errorf("expected page 1, got %d", p.Page)
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 25, Params{Page: 1, Limit: 10, Offset: 0})
	if resp.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", resp.TotalPages)
	}
	if !resp.HasMore {
		t.Error("expected HasMore=true")
	}

	last := NewResponse(nil, 25, Params{Page: 3, Limit: 10, Offset: 20})
	if last.HasMore {
		t.Error("expected HasMore=false on last page")
	}
}
