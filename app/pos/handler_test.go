package pos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytheresa/storefront/models"
)

// --- Mocks ---

type MockProducts struct {
	Products []models.Product
	lastQ    string
	lastN    int
}

func (m *MockProducts) SearchForPOS(ctx context.Context, q string, limit int) ([]models.Product, error) {
	m.lastQ, m.lastN = q, limit
	return m.Products, nil
}

type MockOrders struct {
	Orders    []models.Order
	Err       error
	LastInput *models.PlaceOrderInput
}

func (m *MockOrders) PlaceOrder(ctx context.Context, in models.PlaceOrderInput) (*models.Order, error) {
	m.LastInput = &in
	if m.Err != nil {
		return nil, m.Err
	}
	total := decimal.RequireFromString("42.00")
	order := &models.Order{
		ID:            9,
		OrderNumber:   "POS-20260301-0000AAAA",
		Channel:       in.Channel,
		Status:        in.Status,
		PaymentStatus: in.PaymentStatus,
		PaymentMethod: in.PaymentMethod,
		Total:         total,
		Payment:       &models.Payment{Method: in.PaymentMethod, Amount: total},
	}
	if in.AmountTendered != nil {
		change := in.AmountTendered.Sub(total)
		order.Payment.AmountTendered = in.AmountTendered
		order.Payment.ChangeDue = &change
	}
	return order, nil
}

func (m *MockOrders) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	for _, o := range m.Orders {
		if o.ID == id {
			order := o
			return &order, nil
		}
	}
	return nil, models.ErrOrderNotFound
}

type MockCustomers struct {
	Users []models.User
}

func (m *MockCustomers) GetUser(ctx context.Context, id uint) (*models.User, error) {
	for _, u := range m.Users {
		if u.ID == id {
			user := u
			return &user, nil
		}
	}
	return nil, models.ErrUserNotFound
}

type MockRecorder struct {
	placed   []string
	failures []string
}

func (m *MockRecorder) OrderPlaced(channel, paymentMethod string, total float64) {
	m.placed = append(m.placed, channel+"/"+paymentMethod)
}

func (m *MockRecorder) CheckoutFailed(channel, reason string) {
	m.failures = append(m.failures, channel+"/"+reason)
}

func newHandler(orders *MockOrders, rec *MockRecorder) *POSHandler {
	customers := &MockCustomers{Users: []models.User{{ID: 3, Name: "Grace Hopper", Email: "grace@example.com", Phone: "555"}}}
	h := NewPOSHandler(&MockProducts{}, orders, customers, rec, models.PricingRules{})
	h.now = func() time.Time { return time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC) }
	return h
}

// --- Tests ---

func TestHandleSearch(t *testing.T) {
	sale := decimal.NewFromInt(8)
	products := &MockProducts{Products: []models.Product{
		{ID: 1, Name: "Candle", SKU: "CND-1", Barcode: "400123", Price: decimal.NewFromInt(10), SalePrice: &sale, StockQuantity: 3},
	}}
	handler := NewPOSHandler(products, &MockOrders{}, &MockCustomers{}, &MockRecorder{}, models.PricingRules{})
	req := httptest.NewRequest("GET", "/admin/pos/products?q=%20400123%20", nil)
	rec := httptest.NewRecorder()

	handler.HandleSearch(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "400123", products.lastQ)
	assert.Equal(t, searchLimit, products.lastN)
	var resp struct {
		Products []SearchResult `json:"products"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "8", resp.Products[0].EffectivePrice.String())
}

func TestHandleCreateOrder(t *testing.T) {
	testCases := []struct {
		name               string
		requestBody        string
		ordersErr          error
		expectedStatusCode int
		checkResponse      func(t *testing.T, rec *httptest.ResponseRecorder)
		checkCalls         func(t *testing.T, orders *MockOrders, metrics *MockRecorder)
	}{
		{
			name:               "Cash sale returns change",
			requestBody:        `{"items":[{"product_id":1,"quantity":2}],"payment_method":"cash","amount_tendered":"50"}`,
			expectedStatusCode: http.StatusCreated,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp struct {
					ChangeDue decimal.Decimal `json:"change_due"`
				}
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "8", resp.ChangeDue.String())
			},
			checkCalls: func(t *testing.T, orders *MockOrders, metrics *MockRecorder) {
				in := orders.LastInput
				require.NotNil(t, in)
				assert.Equal(t, models.ChannelPOS, in.Channel)
				assert.Equal(t, models.OrderStatusCompleted, in.Status)
				assert.Equal(t, models.PaymentStatusPaid, in.PaymentStatus)
				assert.False(t, in.Shippable)
				assert.Equal(t, "Walk-in customer", in.CustomerName)
				assert.Nil(t, in.UserID)
				assert.Equal(t, []string{"pos/cash"}, metrics.placed)
			},
		},
		{
			name:               "Card sale for a known customer",
			requestBody:        `{"items":[{"product_id":1,"quantity":1}],"customer_id":3,"payment_method":"card","amount_tendered":"100"}`,
			expectedStatusCode: http.StatusCreated,
			checkCalls: func(t *testing.T, orders *MockOrders, metrics *MockRecorder) {
				in := orders.LastInput
				require.NotNil(t, in)
				require.NotNil(t, in.UserID)
				assert.Equal(t, uint(3), *in.UserID)
				assert.Equal(t, "Grace Hopper", in.CustomerName)
				assert.Equal(t, "grace@example.com", in.CustomerEmail)
				assert.Nil(t, in.AmountTendered)
			},
		},
		{
			name:               "Cash without tendered amount",
			requestBody:        `{"items":[{"product_id":1,"quantity":1}],"payment_method":"cash"}`,
			expectedStatusCode: http.StatusUnprocessableEntity,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Contains(t, rec.Body.String(), `"amount_tendered":"is required"`)
			},
			checkCalls: func(t *testing.T, orders *MockOrders, metrics *MockRecorder) {
				assert.Nil(t, orders.LastInput)
			},
		},
		{
			name:               "Tendered below total",
			requestBody:        `{"items":[{"product_id":1,"quantity":1}],"payment_method":"cash","amount_tendered":"10"}`,
			ordersErr:          models.Rule("amount_tendered", "amount tendered %s is less than total %s", "10.00", "42.00"),
			expectedStatusCode: http.StatusUnprocessableEntity,
			checkCalls: func(t *testing.T, orders *MockOrders, metrics *MockRecorder) {
				assert.Equal(t, []string{"pos/payment"}, metrics.failures)
			},
		},
		{
			name:               "Empty basket",
			requestBody:        `{"items":[],"payment_method":"card"}`,
			expectedStatusCode: http.StatusUnprocessableEntity,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Contains(t, rec.Body.String(), `"items":"must contain at least 1 items"`)
			},
		},
		{
			name:               "Online payment method refused",
			requestBody:        `{"items":[{"product_id":1,"quantity":1}],"payment_method":"cod"}`,
			expectedStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name:               "Unknown customer",
			requestBody:        `{"items":[{"product_id":1,"quantity":1}],"customer_id":77,"payment_method":"card"}`,
			expectedStatusCode: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			orders := &MockOrders{Err: tc.ordersErr}
			metrics := &MockRecorder{}
			handler := newHandler(orders, metrics)
			req := httptest.NewRequest("POST", "/admin/pos/orders", strings.NewReader(tc.requestBody))
			rec := httptest.NewRecorder()

			// Act
			handler.HandleCreateOrder(rec, req)

			// Assert
			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			if tc.checkResponse != nil {
				tc.checkResponse(t, rec)
			}
			if tc.checkCalls != nil {
				tc.checkCalls(t, orders, metrics)
			}
		})
	}
}

func TestHandleReceipt(t *testing.T) {
	tendered := decimal.NewFromInt(50)
	change := decimal.RequireFromString("8.00")
	orders := &MockOrders{Orders: []models.Order{
		{
			ID:            9,
			OrderNumber:   "POS-1",
			Channel:       models.ChannelPOS,
			PaymentMethod: models.PaymentMethodCash,
			Total:         decimal.NewFromInt(42),
			Items:         []models.OrderItem{{ProductName: "Candle", ProductSKU: "CND-1", Quantity: 2, Price: decimal.NewFromInt(21), Subtotal: decimal.NewFromInt(42)}},
			Payment:       &models.Payment{AmountTendered: &tendered, ChangeDue: &change, TransactionID: "tx-1"},
		},
		{ID: 10, OrderNumber: "ORD-1", Channel: models.ChannelOnline},
	}}

	t.Run("POS order", func(t *testing.T) {
		handler := newHandler(orders, &MockRecorder{})
		req := httptest.NewRequest("GET", "/admin/pos/orders/9/receipt", nil)
		req.SetPathValue("id", "9")
		rec := httptest.NewRecorder()

		handler.HandleReceipt(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var receipt Receipt
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&receipt))
		assert.Equal(t, "POS-1", receipt.OrderNumber)
		require.Len(t, receipt.Lines, 1)
		assert.Equal(t, "Candle", receipt.Lines[0].Name)
		require.NotNil(t, receipt.ChangeDue)
		assert.Equal(t, "8", receipt.ChangeDue.String())
	})

	t.Run("Online order has no receipt", func(t *testing.T) {
		handler := newHandler(orders, &MockRecorder{})
		req := httptest.NewRequest("GET", "/admin/pos/orders/10/receipt", nil)
		req.SetPathValue("id", "10")
		rec := httptest.NewRecorder()

		handler.HandleReceipt(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
