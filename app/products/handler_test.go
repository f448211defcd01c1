package products

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytheresa/storefront/models"
)

// --- Mock Repository ---

type MockProductsRepo struct {
	Products  []models.Product
	ListErr   error
	SaveErr   error
	DeleteErr error
	StockErr  error

	LastSaved      *models.Product
	lastFilters    models.ProductFilters
	lastOffset     int
	lastLimit      int
	adjustCalls    []int
	setCalls       []int
	syncedServices []uint
	createCalled   bool
	updateCalled   bool
}

func (m *MockProductsRepo) GetFilteredProducts(ctx context.Context, offset, limit int, filters models.ProductFilters) ([]models.Product, int64, error) {
	m.lastOffset, m.lastLimit, m.lastFilters = offset, limit, filters
	if m.ListErr != nil {
		return nil, 0, m.ListErr
	}
	return m.Products, int64(len(m.Products)), nil
}

func (m *MockProductsRepo) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	for _, p := range m.Products {
		if p.ID == id {
			product := p
			return &product, nil
		}
	}
	return nil, models.ErrProductNotFound
}

func (m *MockProductsRepo) CreateProduct(ctx context.Context, p *models.Product) error {
	m.createCalled = true
	m.LastSaved = p
	return m.SaveErr
}

func (m *MockProductsRepo) UpdateProduct(ctx context.Context, p *models.Product) error {
	m.updateCalled = true
	m.LastSaved = p
	return m.SaveErr
}

func (m *MockProductsRepo) DeleteProduct(ctx context.Context, id uint) error {
	return m.DeleteErr
}

func (m *MockProductsRepo) AdjustStock(ctx context.Context, id uint, delta int) (*models.Product, error) {
	m.adjustCalls = append(m.adjustCalls, delta)
	if m.StockErr != nil {
		return nil, m.StockErr
	}
	return &models.Product{ID: id, StockQuantity: 10 + delta}, nil
}

func (m *MockProductsRepo) SetStock(ctx context.Context, id uint, quantity int) (*models.Product, error) {
	m.setCalls = append(m.setCalls, quantity)
	if m.StockErr != nil {
		return nil, m.StockErr
	}
	return &models.Product{ID: id, StockQuantity: quantity}, nil
}

func (m *MockProductsRepo) SyncServices(ctx context.Context, productID uint, serviceIDs []uint) (*models.Product, error) {
	m.syncedServices = serviceIDs
	services := make([]models.ProductService, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		services = append(services, models.ProductService{ID: id})
	}
	return &models.Product{ID: productID, Services: services}, nil
}

// --- Tests ---

func TestHandleList(t *testing.T) {
	testCases := []struct {
		name               string
		url                string
		mockRepoSetup      func() *MockProductsRepo
		expectedStatusCode int
		checkResponse      func(t *testing.T, rec *httptest.ResponseRecorder)
		checkRepoCalls     func(t *testing.T, repo *MockProductsRepo)
	}{
		{
			name: "Admin filters are forwarded",
			url:  "/admin/products?q=lamp&category_id=3&brand_id=2&status=draft&stock=low&sort=price_asc&limit=25",
			mockRepoSetup: func() *MockProductsRepo {
				return &MockProductsRepo{Products: []models.Product{{ID: 1, Name: "Desk Lamp", Status: models.ProductStatusDraft}}}
			},
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp Response
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, 1, resp.Total)
				assert.Equal(t, "Desk Lamp", resp.Products[0].Name)
			},
			checkRepoCalls: func(t *testing.T, repo *MockProductsRepo) {
				f := repo.lastFilters
				assert.Equal(t, "lamp", f.Search)
				assert.Equal(t, []uint{3}, f.CategoryIDs)
				require.NotNil(t, f.BrandID)
				assert.Equal(t, uint(2), *f.BrandID)
				assert.Equal(t, models.ProductStatusDraft, f.Status)
				assert.Equal(t, "low", f.Stock)
				assert.Equal(t, 5, f.LowStockThreshold)
				assert.Equal(t, models.SortPriceAsc, f.Sort)
				assert.Equal(t, 25, repo.lastLimit)
			},
		},
		{
			name: "Unknown status and stock filters are ignored",
			url:  "/admin/products?status=archived&stock=plenty",
			mockRepoSetup: func() *MockProductsRepo {
				return &MockProductsRepo{}
			},
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.JSONEq(t, `{"total":0,"products":[]}`, rec.Body.String())
			},
			checkRepoCalls: func(t *testing.T, repo *MockProductsRepo) {
				assert.Empty(t, repo.lastFilters.Status)
				assert.Empty(t, repo.lastFilters.Stock)
			},
		},
		{
			name: "Repository error",
			url:  "/admin/products",
			mockRepoSetup: func() *MockProductsRepo {
				return &MockProductsRepo{ListErr: errors.New("db down")}
			},
			expectedStatusCode: http.StatusInternalServerError,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.JSONEq(t, `{"error":"failed to get products"}`, rec.Body.String())
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			mockRepo := tc.mockRepoSetup()
			handler := NewProductHandler(mockRepo, 5)
			req := httptest.NewRequest("GET", tc.url, nil)
			rec := httptest.NewRecorder()

			// Act
			handler.HandleList(rec, req)

			// Assert
			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			if tc.checkResponse != nil {
				tc.checkResponse(t, rec)
			}
			if tc.checkRepoCalls != nil {
				tc.checkRepoCalls(t, mockRepo)
			}
		})
	}
}

func TestHandleCreate(t *testing.T) {
	testCases := []struct {
		name               string
		requestBody        string
		saveErr            error
		expectedStatusCode int
		checkResponse      func(t *testing.T, rec *httptest.ResponseRecorder)
		checkRepoCall      func(t *testing.T, repo *MockProductsRepo)
	}{
		{
			name:               "Success with defaults",
			requestBody:        `{"name":"Oak Side Table","sku":" tbl-001 ","price":"149.90","stock_quantity":4,"category_id":2}`,
			expectedStatusCode: http.StatusCreated,
			checkRepoCall: func(t *testing.T, repo *MockProductsRepo) {
				require.NotNil(t, repo.LastSaved)
				assert.Equal(t, "oak-side-table", repo.LastSaved.Slug)
				assert.Equal(t, "TBL-001", repo.LastSaved.SKU)
				assert.Equal(t, models.ProductStatusActive, repo.LastSaved.Status)
				assert.Equal(t, 4, repo.LastSaved.StockQuantity)
				assert.True(t, decimal.RequireFromString("149.90").Equal(repo.LastSaved.Price))
				assert.Nil(t, repo.LastSaved.SalePrice)
			},
		},
		{
			name:               "Zero sale price is cleared",
			requestBody:        `{"name":"Rug","sku":"RUG-1","price":"80","sale_price":"0","category_id":1,"status":"draft"}`,
			expectedStatusCode: http.StatusCreated,
			checkRepoCall: func(t *testing.T, repo *MockProductsRepo) {
				require.NotNil(t, repo.LastSaved)
				assert.Nil(t, repo.LastSaved.SalePrice)
				assert.Equal(t, models.ProductStatusDraft, repo.LastSaved.Status)
			},
		},
		{
			name:               "Sale price above price",
			requestBody:        `{"name":"Rug","sku":"RUG-1","price":"80","sale_price":"90","category_id":1}`,
			expectedStatusCode: http.StatusUnprocessableEntity,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.JSONEq(t, `{"error":"sale_price: must be lower than the price","fields":{"sale_price":"must be lower than the price"}}`, rec.Body.String())
			},
			checkRepoCall: func(t *testing.T, repo *MockProductsRepo) {
				assert.False(t, repo.createCalled)
			},
		},
		{
			name:               "Missing fields",
			requestBody:        `{"price":"0"}`,
			expectedStatusCode: http.StatusUnprocessableEntity,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp struct {
					Fields map[string]string `json:"fields"`
				}
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "is required", resp.Fields["name"])
				assert.Equal(t, "is required", resp.Fields["sku"])
				assert.Equal(t, "is required", resp.Fields["category_id"])
				assert.Equal(t, "must be greater than 0", resp.Fields["price"])
			},
		},
		{
			name:               "Unknown category",
			requestBody:        `{"name":"Rug","sku":"RUG-1","price":"80","category_id":99}`,
			saveErr:            models.Rule("category_id", "category %d does not exist", 99),
			expectedStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name:               "Invalid JSON",
			requestBody:        `{"name":`,
			expectedStatusCode: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			mockRepo := &MockProductsRepo{SaveErr: tc.saveErr}
			handler := NewProductHandler(mockRepo, 5)
			req := httptest.NewRequest("POST", "/admin/products", strings.NewReader(tc.requestBody))
			rec := httptest.NewRecorder()

			// Act
			handler.HandleCreate(rec, req)

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

func TestHandleUpdate(t *testing.T) {
	existing := models.Product{ID: 7, Name: "Lamp", Slug: "lamp", SKU: "LMP-1", Status: models.ProductStatusInactive, StockQuantity: 12}

	t.Run("Keeps stock and status when omitted", func(t *testing.T) {
		mockRepo := &MockProductsRepo{Products: []models.Product{existing}}
		handler := NewProductHandler(mockRepo, 5)
		req := httptest.NewRequest("PUT", "/admin/products/7", strings.NewReader(`{"name":"Brass Lamp","sku":"LMP-1","price":"55","stock_quantity":0,"category_id":1}`))
		req.SetPathValue("id", "7")
		rec := httptest.NewRecorder()

		handler.HandleUpdate(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.True(t, mockRepo.updateCalled)
		assert.Equal(t, "brass-lamp", mockRepo.LastSaved.Slug)
		assert.Equal(t, 12, mockRepo.LastSaved.StockQuantity)
		assert.Equal(t, models.ProductStatusInactive, mockRepo.LastSaved.Status)
	})

	t.Run("Unknown product", func(t *testing.T) {
		mockRepo := &MockProductsRepo{}
		handler := NewProductHandler(mockRepo, 5)
		req := httptest.NewRequest("PUT", "/admin/products/9", strings.NewReader(`{"name":"X","sku":"X","price":"1","category_id":1}`))
		req.SetPathValue("id", "9")
		rec := httptest.NewRecorder()

		handler.HandleUpdate(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"product not found"}`, rec.Body.String())
		assert.False(t, mockRepo.updateCalled)
	})
}

func TestHandleStock(t *testing.T) {
	testCases := []struct {
		name               string
		requestBody        string
		stockErr           error
		expectedStatusCode int
		checkResponse      func(t *testing.T, rec *httptest.ResponseRecorder)
		checkRepoCalls     func(t *testing.T, repo *MockProductsRepo)
	}{
		{
			name:               "Adjustment",
			requestBody:        `{"adjustment":-3}`,
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.JSONEq(t, `{"message":"Stock updated successfully","stock_quantity":7}`, rec.Body.String())
			},
			checkRepoCalls: func(t *testing.T, repo *MockProductsRepo) {
				assert.Equal(t, []int{-3}, repo.adjustCalls)
				assert.Empty(t, repo.setCalls)
			},
		},
		{
			name:               "Absolute quantity",
			requestBody:        `{"quantity":20}`,
			expectedStatusCode: http.StatusOK,
			checkRepoCalls: func(t *testing.T, repo *MockProductsRepo) {
				assert.Equal(t, []int{20}, repo.setCalls)
				assert.Empty(t, repo.adjustCalls)
			},
		},
		{
			name:               "Both given",
			requestBody:        `{"adjustment":1,"quantity":2}`,
			expectedStatusCode: http.StatusUnprocessableEntity,
			checkRepoCalls: func(t *testing.T, repo *MockProductsRepo) {
				assert.Empty(t, repo.setCalls)
				assert.Empty(t, repo.adjustCalls)
			},
		},
		{
			name:               "Neither given",
			requestBody:        `{}`,
			expectedStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name:               "Adjustment below zero stock",
			requestBody:        `{"adjustment":-50}`,
			stockErr:           models.Rule("adjustment", "stock cannot go below zero (current %d)", 10),
			expectedStatusCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			mockRepo := &MockProductsRepo{StockErr: tc.stockErr}
			handler := NewProductHandler(mockRepo, 5)
			req := httptest.NewRequest("PATCH", "/admin/products/4/stock", strings.NewReader(tc.requestBody))
			req.SetPathValue("id", "4")
			rec := httptest.NewRecorder()

			// Act
			handler.HandleStock(rec, req)

			// Assert
			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			if tc.checkResponse != nil {
				tc.checkResponse(t, rec)
			}
			if tc.checkRepoCalls != nil {
				tc.checkRepoCalls(t, mockRepo)
			}
		})
	}
}

func TestHandleServices(t *testing.T) {
	mockRepo := &MockProductsRepo{}
	handler := NewProductHandler(mockRepo, 5)
	req := httptest.NewRequest("PUT", "/admin/products/4/services", strings.NewReader(`{"service_ids":[3,5]}`))
	req.SetPathValue("id", "4")
	rec := httptest.NewRecorder()

	handler.HandleServices(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uint{3, 5}, mockRepo.syncedServices)
}

func TestHandleDeleteBadID(t *testing.T) {
	handler := NewProductHandler(&MockProductsRepo{}, 5)
	req := httptest.NewRequest("DELETE", "/admin/products/abc", nil)
	req.SetPathValue("id", "abc")
	rec := httptest.NewRecorder()

	handler.HandleDelete(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
