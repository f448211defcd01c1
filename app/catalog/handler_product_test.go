package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mytheresa/storefront/models"
)

// --- Tests ---

func TestHandleGetProduct(t *testing.T) {
	sale := decimal.NewFromFloat(12.00)
	brandID := uint(4)
	allMockProducts := []models.Product{
		{
			Slug:          "desk-lamp",
			Name:          "Desk Lamp",
			SKU:           "LAMP-1",
			Price:         decimal.NewFromFloat(15.50),
			SalePrice:     &sale,
			StockQuantity: 4,
			Category:      models.Category{Slug: "lighting", Name: "Lighting"},
			BrandID:       &brandID,
			Brand:         &models.Brand{Slug: "lumen", Name: "Lumen"},
			Services: []models.ProductService{
				{ID: 1, Name: "Assembly", Price: decimal.NewFromFloat(9.90), DurationMinutes: 30, RequiresProvider: true},
			},
		},
		{
			Slug:     "rug",
			Name:     "Rug",
			Price:    decimal.NewFromFloat(30.00),
			Category: models.Category{Slug: "home", Name: "Home"},
			Services: []models.ProductService{},
		},
	}

	testCases := []struct {
		name               string
		productSlug        string
		mockRepoSetup      func() *MockProductRepo
		expectedStatusCode int
		checkResponse      func(t *testing.T, rec *httptest.ResponseRecorder)
		checkRepoCall      func(t *testing.T, repo *MockProductRepo)
	}{
		{
			name:        "Success with sale price and services",
			productSlug: "desk-lamp",
			mockRepoSetup: func() *MockProductRepo {
				return &MockProductRepo{SourceProducts: allMockProducts}
			},
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp ProductDetail
				err := json.NewDecoder(rec.Body).Decode(&resp)
				assert.NoError(t, err)
				assert.Equal(t, "desk-lamp", resp.Slug)
				assert.Equal(t, 15.50, resp.Price)
				assert.Equal(t, 12.00, resp.EffectivePrice, "Sale price should win")
				assert.True(t, resp.OnSale)
				assert.True(t, resp.InStock)
				assert.Equal(t, "lighting", resp.Category.Slug)
				assert.Equal(t, "lumen", resp.Brand.Slug)
				assert.Len(t, resp.Services, 1)
				assert.Equal(t, 9.90, resp.Services[0].Price)
			},
			checkRepoCall: func(t *testing.T, repo *MockProductRepo) {
				assert.Equal(t, "desk-lamp", repo.lastCalledSlug)
			},
		},
		{
			name:        "Product not found",
			productSlug: "nonexistent",
			mockRepoSetup: func() *MockProductRepo {
				return &MockProductRepo{SourceProducts: allMockProducts}
			},
			expectedStatusCode: http.StatusNotFound,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var errResp map[string]string
				err := json.NewDecoder(rec.Body).Decode(&errResp)
				assert.NoError(t, err)
				assert.Equal(t, "Product not found", errResp["error"])
			},
			checkRepoCall: func(t *testing.T, repo *MockProductRepo) {
				assert.Equal(t, "nonexistent", repo.lastCalledSlug)
			},
		},
		{
			name:        "Repository internal error",
			productSlug: "prod-err",
			mockRepoSetup: func() *MockProductRepo {
				return &MockProductRepo{Err: errors.New("db connection lost")}
			},
			expectedStatusCode: http.StatusInternalServerError,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var errResp map[string]string
				err := json.NewDecoder(rec.Body).Decode(&errResp)
				assert.NoError(t, err)
				assert.Equal(t, "Failed to retrieve product", errResp["error"])
			},
		},
		{
			name:        "Product without services or stock",
			productSlug: "rug",
			mockRepoSetup: func() *MockProductRepo {
				return &MockProductRepo{SourceProducts: allMockProducts}
			},
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp ProductDetail
				err := json.NewDecoder(rec.Body).Decode(&resp)
				assert.NoError(t, err)
				assert.Equal(t, "rug", resp.Slug)
				assert.Len(t, resp.Services, 0)
				assert.False(t, resp.InStock)
				assert.False(t, resp.OnSale)
				assert.Nil(t, resp.SalePrice)
				assert.Nil(t, resp.Brand)
			},
		},
		{
			name:        "Empty product slug in path",
			productSlug: "",
			mockRepoSetup: func() *MockProductRepo {
				return &MockProductRepo{SourceProducts: allMockProducts}
			},
			expectedStatusCode: http.StatusNotFound,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var errResp map[string]string
				err := json.NewDecoder(rec.Body).Decode(&errResp)
				assert.NoError(t, err)
				assert.Equal(t, "Product not found", errResp["error"])
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			mockRepo := tc.mockRepoSetup()
			handler := NewCatalogHandler(mockRepo, newTestCategories(), &MockBrandRepo{})
			req := httptest.NewRequest("GET", "/products/"+tc.productSlug, nil)
			req.SetPathValue("slug", tc.productSlug)
			rec := httptest.NewRecorder()

			// Act
			handler.HandleGetProduct(rec, req)

			// Assert
			assert.Equal(t, tc.expectedStatusCode, rec.Code)

			if tc.checkResponse != nil {
				tc.checkResponse(t, rec)
			}

			if tc.checkRepoCall != nil {
				tc.checkRepoCall(t, mockRepo)
			}
		})
	}
}
