package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"priceguard/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		contains string
	}{
		{models.ErrConflict, http.StatusConflict, "already watching this asset"},
		{models.ErrAssetNotFound, http.StatusNotFound, "asset not found"},
		{models.ErrNotFound, http.StatusNotFound, "not found"},
		{models.ErrInvalidThreshold, http.StatusBadRequest, "greater than zero"},
		{models.ErrForbidden, http.StatusForbidden, "forbidden"},
		{assert.AnError, http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, tt.err)
		assert.Equal(t, tt.status, rec.Code, "error %v", tt.err)
		assert.Contains(t, rec.Body.String(), tt.contains)
	}
}

func TestGenerateCacheKeyIgnoresParamOrder(t *testing.T) {
	a := httptest.NewRequest("GET", "/prices?page=2&limit=50", nil)
	b := httptest.NewRequest("GET", "/prices?limit=50&page=2", nil)
	c := httptest.NewRequest("GET", "/prices?limit=50&page=3", nil)

	assert.Equal(t, generateCacheKey(a, "browse_prices_"), generateCacheKey(b, "browse_prices_"))
	assert.NotEqual(t, generateCacheKey(a, "browse_prices_"), generateCacheKey(c, "browse_prices_"))
	assert.Contains(t, generateCacheKey(a, "browse_prices_"), "browse_prices_")
}
