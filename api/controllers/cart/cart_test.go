package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubDispatcher struct {
	result     cartsvc.ActionResult
	err        error
	lastOwner  cartsvc.Owner
	lastAction cartsvc.Action

	// count answers every CountAction, including the read made after a failure.
	count      int
	countErr   error
	countCalls int
}

func (s *stubDispatcher) Dispatch(ctx context.Context, owner cartsvc.Owner, action cartsvc.Action) (cartsvc.ActionResult, error) {
	s.lastOwner = owner
	if _, ok := action.(cartsvc.CountAction); ok {
		s.countCalls++
		return cartsvc.ActionResult{Action: enums.CartActionCount, CartCount: s.count}, s.countErr
	}
	s.lastAction = action
	return s.result, s.err
}

type failureBody struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	CartCount int    `json:"cart_count"`
}

func decodeFailure(t *testing.T, resp *httptest.ResponseRecorder) failureBody {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "error")

	var body failureBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

const guestToken = "4f2b9c0d8e7a6b5c4d3e2f1a0b9c8d7e6f5a4b3c2d1e0f9a8b7c6d5e4f3a2b1c"

func guestRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/cart", strings.NewReader(body))
	return req.WithContext(middleware.WithGuestToken(req.Context(), guestToken))
}

func TestCartActionAddForGuest(t *testing.T) {
	stub := &stubDispatcher{result: cartsvc.ActionResult{Action: enums.CartActionAdd, Message: "item added to cart", CartCount: 3}}
	handler := CartAction(stub, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, guestRequest(http.MethodPost, `{"action":"add","product_id":7,"quantity":3,"color":" Red ","size":""}`))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, cartsvc.GuestOwner(guestToken), stub.lastOwner)

	add, ok := stub.lastAction.(cartsvc.AddAction)
	require.True(t, ok, "expected add action, got %T", stub.lastAction)
	assert.Equal(t, int64(7), add.Key.ProductID)
	assert.Equal(t, 3, add.Quantity)
	require.NotNil(t, add.Key.Color)
	assert.Equal(t, "Red", *add.Key.Color)
	assert.Nil(t, add.Key.Size)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["cart_count"])
	assert.NotContains(t, body, "data")
}

func TestCartActionUserWinsOverGuest(t *testing.T) {
	stub := &stubDispatcher{result: cartsvc.ActionResult{Action: enums.CartActionCount}}
	handler := CartAction(stub, nil)

	userID := uuid.New()
	req := guestRequest(http.MethodPost, `{"action":"count"}`)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, cartsvc.UserOwner(userID), stub.lastOwner)
}

func TestCartActionDirectionStep(t *testing.T) {
	stub := &stubDispatcher{}
	handler := CartAction(stub, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, guestRequest(http.MethodPost, `{"action":"update","product_id":7,"direction":"decrease"}`))

	require.Equal(t, http.StatusOK, resp.Code)
	update, ok := stub.lastAction.(cartsvc.UpdateQuantityAction)
	require.True(t, ok)
	assert.Equal(t, cartsvc.StepQuantity(-1), update.Update)
}

func TestCartActionRejectsUnknownAction(t *testing.T) {
	stub := &stubDispatcher{}
	handler := CartAction(stub, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, guestRequest(http.MethodPost, `{"action":"explode","product_id":1}`))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Nil(t, stub.lastAction)
}

func TestCartActionRequiresOwner(t *testing.T) {
	stub := &stubDispatcher{}
	handler := CartAction(stub, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(`{"action":"count"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCartActionPropagatesServiceError(t *testing.T) {
	stub := &stubDispatcher{err: pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")}
	handler := CartAction(stub, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, guestRequest(http.MethodPost, `{"action":"remove","product_id":9}`))

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCartActionFailureUsesActionShape(t *testing.T) {
	cases := []struct {
		name      string
		stub      *stubDispatcher
		body      string
		status    int
		message   string
		cartCount int
	}{
		{
			name:      "missing line reports current count",
			stub:      &stubDispatcher{err: pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found"), count: 4},
			body:      `{"action":"update","product_id":9,"quantity":2}`,
			status:    http.StatusNotFound,
			message:   "cart line not found",
			cartCount: 4,
		},
		{
			name:    "store outage hides internals and count",
			stub:    &stubDispatcher{err: errors.New("dial tcp: refused"), countErr: errors.New("dial tcp: refused")},
			body:    `{"action":"add","product_id":9}`,
			status:  http.StatusInternalServerError,
			message: "internal server error",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := CartAction(tc.stub, nil)

			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, guestRequest(http.MethodPost, tc.body))

			require.Equal(t, tc.status, resp.Code)
			body := decodeFailure(t, resp)
			assert.False(t, body.Success)
			assert.Equal(t, tc.message, body.Message)
			assert.Equal(t, tc.cartCount, body.CartCount)
			assert.Equal(t, 1, tc.stub.countCalls)
		})
	}
}

func TestCartActionValidationFailureUsesActionShape(t *testing.T) {
	stub := &stubDispatcher{}
	handler := CartAction(stub, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, guestRequest(http.MethodPost, `{"action":"explode","product_id":1}`))

	require.Equal(t, http.StatusBadRequest, resp.Code)
	body := decodeFailure(t, resp)
	assert.False(t, body.Success)
	assert.Equal(t, "unknown cart action", body.Message)
	assert.Nil(t, stub.lastAction)
	assert.Equal(t, 1, stub.countCalls)
}

func TestCartFetchListsItems(t *testing.T) {
	view := &cartsvc.CartView{
		Items: []cartsvc.ViewItem{{
			ProductID: 7,
			Name:      "Tee",
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("12.50"),
			LineTotal: decimal.RequireFromString("25.00"),
		}},
		Totals:    cartsvc.Totals{Subtotal: decimal.RequireFromString("25.00"), Total: decimal.RequireFromString("25.00"), ItemCount: 2},
		CartCount: 2,
	}
	stub := &stubDispatcher{result: cartsvc.ActionResult{Action: enums.CartActionList, Message: "cart loaded", View: view, CartCount: 2}}
	handler := CartFetch(stub, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, guestRequest(http.MethodGet, ""))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.IsType(t, cartsvc.ListAction{}, stub.lastAction)

	var body struct {
		Items []struct {
			ProductID int64       `json:"product_id"`
			LineTotal json.Number `json:"line_total"`
		} `json:"items"`
		Total     json.Number `json:"total"`
		ItemCount int         `json:"item_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, int64(7), body.Items[0].ProductID)
	assert.Equal(t, "25.00", body.Items[0].LineTotal.String())
	assert.Equal(t, "25.00", body.Total.String())
	assert.Equal(t, 2, body.ItemCount)
}
