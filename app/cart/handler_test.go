package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytheresa/storefront/app/auth"
	"github.com/mytheresa/storefront/app/session"
	"github.com/mytheresa/storefront/models"
)

// --- Mock Repositories ---

type MockCartStore struct {
	Cart      *models.Cart
	Err       error
	ItemErr   error
	LastOwner models.CartOwner

	addedProduct  uint
	addedQuantity int
	selections    []models.ServiceSelection
	couponSet     *string
	cleared       bool
}

func (m *MockCartStore) cart() *models.Cart {
	if m.Cart == nil {
		return &models.Cart{}
	}
	return m.Cart
}

func (m *MockCartStore) GetCart(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	m.LastOwner = owner
	if m.Err != nil {
		return nil, m.Err
	}
	return m.cart(), nil
}

func (m *MockCartStore) AddItem(ctx context.Context, owner models.CartOwner, productID uint, quantity int, selections []models.ServiceSelection, now time.Time) (*models.Cart, error) {
	m.LastOwner = owner
	m.addedProduct, m.addedQuantity, m.selections = productID, quantity, selections
	if m.ItemErr != nil {
		return nil, m.ItemErr
	}
	return m.cart(), nil
}

func (m *MockCartStore) UpdateQuantity(ctx context.Context, owner models.CartOwner, itemID uint, quantity int) (*models.Cart, error) {
	m.LastOwner = owner
	if m.ItemErr != nil {
		return nil, m.ItemErr
	}
	return m.cart(), nil
}

func (m *MockCartStore) RemoveItem(ctx context.Context, owner models.CartOwner, itemID uint) (*models.Cart, error) {
	m.LastOwner = owner
	if m.ItemErr != nil {
		return nil, m.ItemErr
	}
	return m.cart(), nil
}

func (m *MockCartStore) Clear(ctx context.Context, owner models.CartOwner) error {
	m.LastOwner = owner
	m.cleared = true
	return m.Err
}

func (m *MockCartStore) SetCoupon(ctx context.Context, owner models.CartOwner, code string) error {
	m.couponSet = &code
	return nil
}

type MockCoupons struct {
	Coupons map[string]models.Coupon
}

func (m *MockCoupons) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	c, ok := m.Coupons[models.NormalizeCouponCode(code)]
	if !ok {
		return nil, models.ErrCouponNotFound
	}
	return &c, nil
}

var testRules = models.PricingRules{
	TaxRate:               decimal.RequireFromString("0.10"),
	ShippingFlatRate:      decimal.RequireFromString("5"),
	FreeShippingThreshold: decimal.RequireFromString("100"),
}

func sampleCart() *models.Cart {
	return &models.Cart{
		ID: 1,
		Items: []models.CartItem{
			{
				ID:        10,
				ProductID: 3,
				Quantity:  2,
				Product: models.Product{
					ID:            3,
					Name:          "Vase",
					Slug:          "vase",
					SKU:           "VASE-1",
					Price:         decimal.RequireFromString("20"),
					StockQuantity: 8,
				},
				Services: []models.CartItemService{{
					ID:               1,
					ProductServiceID: 4,
					ProductService:   models.ProductService{ID: 4, Name: "Gift wrap", Price: decimal.RequireFromString("2.50")},
				}},
			},
		},
	}
}

func newHandler(store *MockCartStore, coupons *MockCoupons) *CartHandler {
	h := NewCartHandler(store, coupons, testRules)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

// --- Tests ---

func TestHandleGet(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	testCases := []struct {
		name               string
		cart               *models.Cart
		coupons            map[string]models.Coupon
		expectedStatusCode int
		checkResponse      func(t *testing.T, s Summary)
	}{
		{
			name:               "Totals include services, tax and shipping",
			cart:               sampleCart(),
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, s Summary) {
				require.Len(t, s.Items, 1)
				assert.Equal(t, "45", s.Subtotal.String())
				assert.Equal(t, "4.5", s.Tax.String())
				assert.Equal(t, "5", s.Shipping.String())
				assert.Equal(t, "54.5", s.Total.String())
				assert.Equal(t, 2, s.ItemCount)
				assert.Equal(t, "22.5", s.Items[0].UnitPrice.String())
				assert.Equal(t, "Gift wrap", s.Items[0].Services[0].Name)
			},
		},
		{
			name: "Valid coupon is applied",
			cart: func() *models.Cart { c := sampleCart(); c.CouponCode = "SAVE10"; return c }(),
			coupons: map[string]models.Coupon{
				"SAVE10": {Code: "SAVE10", Type: models.CouponTypePercentage, Value: decimal.NewFromInt(10), IsActive: true},
			},
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, s Summary) {
				assert.Equal(t, "4.5", s.Discount.String())
				assert.Empty(t, s.CouponError)
				assert.Equal(t, "SAVE10", s.CouponCode)
			},
		},
		{
			name: "Coupon that is not valid yet is reported, not applied",
			cart: func() *models.Cart { c := sampleCart(); c.CouponCode = "SPRING"; return c }(),
			coupons: map[string]models.Coupon{
				"SPRING": {Code: "SPRING", Type: models.CouponTypeFixed, Value: decimal.NewFromInt(5), IsActive: true, StartsAt: &start},
			},
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, s Summary) {
				assert.True(t, s.Discount.IsZero())
				assert.Equal(t, "coupon SPRING is not valid yet", s.CouponError)
			},
		},
		{
			name:               "Empty cart has no shipping",
			cart:               &models.Cart{},
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, s Summary) {
				assert.Empty(t, s.Items)
				assert.True(t, s.Shipping.IsZero())
				assert.True(t, s.Total.IsZero())
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			store := &MockCartStore{Cart: tc.cart}
			handler := newHandler(store, &MockCoupons{Coupons: tc.coupons})
			req := httptest.NewRequest("GET", "/cart", nil)
			rec := httptest.NewRecorder()

			// Act
			handler.HandleGet(rec, req)

			// Assert
			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			var s Summary
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&s))
			tc.checkResponse(t, s)
			assert.Empty(t, rec.Result().Cookies(), "reading a cart must not issue a session")
		})
	}
}

func TestHandleAddItem(t *testing.T) {
	testCases := []struct {
		name               string
		requestBody        string
		user               *models.User
		itemErr            error
		expectedStatusCode int
		checkStore         func(t *testing.T, store *MockCartStore, rec *httptest.ResponseRecorder)
	}{
		{
			name:               "Guest gets a session cookie",
			requestBody:        `{"product_id":3}`,
			expectedStatusCode: http.StatusCreated,
			checkStore: func(t *testing.T, store *MockCartStore, rec *httptest.ResponseRecorder) {
				assert.Equal(t, uint(3), store.addedProduct)
				assert.Equal(t, 1, store.addedQuantity)
				assert.Nil(t, store.LastOwner.UserID)
				require.Len(t, rec.Result().Cookies(), 1)
				cookie := rec.Result().Cookies()[0]
				assert.Equal(t, session.CookieName, cookie.Name)
				assert.Equal(t, cookie.Value, store.LastOwner.SessionID)
			},
		},
		{
			name:               "Signed in user owns the cart",
			requestBody:        `{"product_id":3,"quantity":2,"services":[{"service_id":4,"provider_id":9,"scheduled_at":"2026-03-02T10:00:00Z"}]}`,
			user:               &models.User{ID: 42},
			expectedStatusCode: http.StatusCreated,
			checkStore: func(t *testing.T, store *MockCartStore, rec *httptest.ResponseRecorder) {
				require.NotNil(t, store.LastOwner.UserID)
				assert.Equal(t, uint(42), *store.LastOwner.UserID)
				assert.Empty(t, rec.Result().Cookies())
				require.Len(t, store.selections, 1)
				assert.Equal(t, uint(4), store.selections[0].ServiceID)
				assert.Equal(t, uint(9), *store.selections[0].ProviderID)
			},
		},
		{
			name:               "Not enough stock",
			requestBody:        `{"product_id":3,"quantity":50}`,
			itemErr:            models.Rule("quantity", "only %d of %s in stock", 8, "Vase"),
			expectedStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name:               "Unknown product",
			requestBody:        `{"product_id":99}`,
			itemErr:            models.ErrProductNotFound,
			expectedStatusCode: http.StatusNotFound,
		},
		{
			name:               "Missing product id",
			requestBody:        `{"quantity":2}`,
			expectedStatusCode: http.StatusUnprocessableEntity,
			checkStore: func(t *testing.T, store *MockCartStore, rec *httptest.ResponseRecorder) {
				assert.Zero(t, store.addedProduct)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			store := &MockCartStore{Cart: sampleCart(), ItemErr: tc.itemErr}
			handler := newHandler(store, &MockCoupons{})
			req := httptest.NewRequest("POST", "/cart/items", strings.NewReader(tc.requestBody))
			if tc.user != nil {
				req = req.WithContext(auth.WithUser(req.Context(), tc.user))
			}
			rec := httptest.NewRecorder()

			// Act
			handler.HandleAddItem(rec, req)

			// Assert
			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			if tc.checkStore != nil {
				tc.checkStore(t, store, rec)
			}
		})
	}
}

func TestHandleUpdateItemOwnership(t *testing.T) {
	store := &MockCartStore{ItemErr: models.ErrForbidden}
	handler := newHandler(store, &MockCoupons{})
	req := httptest.NewRequest("PATCH", "/cart/items/10", strings.NewReader(`{"quantity":3}`))
	req.SetPathValue("id", "10")
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "1b4e28ba-2fa1-11d2-883f-0016d3cca427"})
	rec := httptest.NewRecorder()

	handler.HandleUpdateItem(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", store.LastOwner.SessionID)
}

func TestHandleApplyCoupon(t *testing.T) {
	coupons := &MockCoupons{Coupons: map[string]models.Coupon{
		"BIG": {Code: "BIG", Type: models.CouponTypeFixed, Value: decimal.NewFromInt(10), MinOrderAmount: decimal.NewFromInt(200), IsActive: true},
		"TEN": {Code: "TEN", Type: models.CouponTypeFixed, Value: decimal.NewFromInt(10), IsActive: true},
	}}
	testCases := []struct {
		name               string
		requestBody        string
		cart               *models.Cart
		expectedStatusCode int
		expectedBody       string
		expectStored       bool
	}{
		{
			name:               "Applied",
			requestBody:        `{"code":" ten "}`,
			cart:               sampleCart(),
			expectedStatusCode: http.StatusOK,
			expectStored:       true,
		},
		{
			name:               "Unknown code",
			requestBody:        `{"code":"NOPE"}`,
			cart:               sampleCart(),
			expectedStatusCode: http.StatusUnprocessableEntity,
			expectedBody:       `{"error":"coupon_code: coupon NOPE does not exist","fields":{"coupon_code":"coupon NOPE does not exist"}}`,
		},
		{
			name:               "Below minimum order",
			requestBody:        `{"code":"BIG"}`,
			cart:               sampleCart(),
			expectedStatusCode: http.StatusUnprocessableEntity,
			expectedBody:       `{"error":"coupon_code: coupon BIG requires a minimum order of 200.00","fields":{"coupon_code":"coupon BIG requires a minimum order of 200.00"}}`,
		},
		{
			name:               "Empty cart",
			requestBody:        `{"code":"TEN"}`,
			cart:               &models.Cart{},
			expectedStatusCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			store := &MockCartStore{Cart: tc.cart}
			handler := newHandler(store, coupons)
			req := httptest.NewRequest("POST", "/cart/coupon", strings.NewReader(tc.requestBody))
			rec := httptest.NewRecorder()

			// Act
			handler.HandleApplyCoupon(rec, req)

			// Assert
			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			if tc.expectedBody != "" {
				assert.JSONEq(t, tc.expectedBody, rec.Body.String())
			}
			if tc.expectStored {
				require.NotNil(t, store.couponSet)
				assert.Equal(t, " ten ", *store.couponSet)
				var resp struct {
					Cart Summary `json:"cart"`
				}
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "TEN", resp.Cart.CouponCode)
				assert.Equal(t, "10", resp.Cart.Discount.String())
			} else {
				assert.Nil(t, store.couponSet)
			}
		})
	}
}

func TestHandleRemoveCoupon(t *testing.T) {
	c := sampleCart()
	c.CouponCode = "TEN"
	store := &MockCartStore{Cart: c}
	handler := newHandler(store, &MockCoupons{})
	req := httptest.NewRequest("DELETE", "/cart/coupon", nil)
	req = req.WithContext(auth.WithUser(req.Context(), &models.User{ID: 1}))
	rec := httptest.NewRecorder()

	handler.HandleRemoveCoupon(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.couponSet)
	assert.Empty(t, *store.couponSet)
}

func TestHandleClear(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		store := &MockCartStore{}
		handler := newHandler(store, &MockCoupons{})
		rec := httptest.NewRecorder()

		handler.HandleClear(rec, httptest.NewRequest("DELETE", "/cart", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, store.cleared)
	})

	t.Run("Store failure", func(t *testing.T) {
		store := &MockCartStore{Err: errors.New("db down")}
		handler := newHandler(store, &MockCoupons{})
		rec := httptest.NewRecorder()

		handler.HandleClear(rec, httptest.NewRequest("DELETE", "/cart", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Failed to clear cart"}`, rec.Body.String())
	})
}
