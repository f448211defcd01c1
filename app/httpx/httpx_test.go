package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytheresa/storefront/models"
)

func TestPagination(t *testing.T) {
	testCases := []struct {
		name           string
		url            string
		expectedOffset int
		expectedLimit  int
	}{
		{"Defaults", "/items", 0, 10},
		{"Custom values", "/items?offset=20&limit=5", 20, 5},
		{"Out of bounds", "/items?offset=-10&limit=200", 0, 100},
		{"Lower bound limit", "/items?limit=0", 0, 1},
		{"Invalid values are ignored", "/items?offset=abc&limit=xyz", 0, 10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.url, nil)

			offset, limit := Pagination(req)

			assert.Equal(t, tc.expectedOffset, offset)
			assert.Equal(t, tc.expectedLimit, limit)
		})
	}
}

func TestWriteDomainError(t *testing.T) {
	testCases := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
		expectedFields map[string]any
	}{
		{
			name:           "Not found",
			err:            models.ErrOrderNotFound,
			expectedStatus: http.StatusNotFound,
			expectedError:  "order not found",
		},
		{
			name:           "Wrapped not found",
			err:            fmt.Errorf("loading: %w", models.ErrProductNotFound),
			expectedStatus: http.StatusNotFound,
			expectedError:  "loading: product not found",
		},
		{
			name:           "Forbidden",
			err:            models.ErrForbidden,
			expectedStatus: http.StatusForbidden,
			expectedError:  "You are not allowed to access this resource",
		},
		{
			name:           "Business rule",
			err:            models.Rule("quantity", "only %d left", 2),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "quantity: only 2 left",
			expectedFields: map[string]any{"quantity": "only 2 left"},
		},
		{
			name:           "Unknown error",
			err:            errors.New("connection reset"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "failed to do things",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/", nil)

			WriteDomainError(rec, req, tc.err, "failed to do things")

			assert.Equal(t, tc.expectedStatus, rec.Code)
			var body map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.expectedError, body["error"])
			if tc.expectedFields != nil {
				assert.Equal(t, tc.expectedFields, body["fields"])
			}
		})
	}
}

type bindInput struct {
	Name     string          `json:"name" validate:"required,max=10"`
	Email    string          `json:"email" validate:"omitempty,email"`
	Price    decimal.Decimal `json:"price" validate:"gt=0"`
	Kind     string          `json:"kind" validate:"omitempty,oneof=a b"`
	Quantity int             `json:"quantity" validate:"gte=1"`
}

func TestBind(t *testing.T) {
	t.Run("Invalid JSON", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/", strings.NewReader("{oops"))
		var in bindInput

		ok := Bind(rec, req, &in)

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid JSON body"}`, rec.Body.String())
	})

	t.Run("Field errors", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"nope","price":"0","kind":"c","quantity":0}`))
		var in bindInput

		ok := Bind(rec, req, &in)

		assert.False(t, ok)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var body struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "Validation failed", body.Error)
		assert.Equal(t, map[string]string{
			"name":     "is required",
			"email":    "must be a valid email address",
			"price":    "must be greater than 0",
			"kind":     "must be one of a, b",
			"quantity": "must be at least 1",
		}, body.Fields)
	})

	t.Run("Valid body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Lamp","price":"12.50","quantity":2}`))
		var in bindInput

		ok := Bind(rec, req, &in)

		assert.True(t, ok)
		assert.Equal(t, "Lamp", in.Name)
		assert.True(t, decimal.RequireFromString("12.5").Equal(in.Price))
	})
}

func TestPathID(t *testing.T) {
	req := httptest.NewRequest("GET", "/items/12", nil)
	req.SetPathValue("id", "12")
	rec := httptest.NewRecorder()

	id, ok := PathID(rec, req, "id")
	assert.True(t, ok)
	assert.Equal(t, uint(12), id)

	req.SetPathValue("id", "abc")
	_, ok = PathID(rec, req, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
