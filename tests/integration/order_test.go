//go:build integration

package integration

import (
	"math"
	"net/http"
	"regexp"
	"testing"
)

var (
	uuidPattern      = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	referencePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{5}$`)
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

func TestCheckout_NoAuth(t *testing.T) {
	req := checkoutRequest{
		UserID: "user-alice",
		Items:  []itemRequest{{ProductID: "tiramisu", Quantity: 1}},
	}
	resp := doPost(t, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCheckout_InvalidKey(t *testing.T) {
	req := checkoutRequest{
		UserID: "user-alice",
		Items:  []itemRequest{{ProductID: "tiramisu", Quantity: 1}},
	}
	resp := doPostWithAuth(t, "/api/checkout", req, "wrong-key")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCheckout_EmptyItems(t *testing.T) {
	req := checkoutRequest{UserID: "user-alice"}
	resp := doPostWithAuth(t, "/api/checkout", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCheckout_UnknownProduct(t *testing.T) {
	req := checkoutRequest{
		UserID: "user-alice",
		Items:  []itemRequest{{ProductID: "no-such-product", Quantity: 1}},
	}
	resp := doPostWithAuth(t, "/api/checkout", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCheckout_SingleItem(t *testing.T) {
	req := checkoutRequest{
		UserID: "user-alice",
		Items:  []itemRequest{{ProductID: "tiramisu", Quantity: 1}}, // $5.50
	}
	resp := doPostWithAuth(t, "/api/checkout", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	order := decodeJSON[orderResponse](t, resp)
	if order.Status != "pending" {
		t.Errorf("status: got %q, want pending", order.Status)
	}
	if !uuidPattern.MatchString(order.ID) {
		t.Errorf("order ID %q is not a valid UUID", order.ID)
	}
	if !referencePattern.MatchString(order.Reference) {
		t.Errorf("reference %q does not match YYYY-MM-NNNNN", order.Reference)
	}
	if !almostEqual(order.Subtotal, 5.5) {
		t.Errorf("subtotal: got %v, want 5.5", order.Subtotal)
	}
	// demo site: 8.25% tax, $5.00 shipping
	if !almostEqual(order.Tax, 0.45) {
		t.Errorf("tax: got %v, want 0.45", order.Tax)
	}
	if !almostEqual(order.Shipping, 5.0) {
		t.Errorf("shipping: got %v, want 5.0", order.Shipping)
	}
	if !almostEqual(order.GrandTotal, order.Subtotal+order.Tax+order.Shipping-order.Discount) {
		t.Errorf("grand total %v does not balance", order.GrandTotal)
	}
}

func TestCheckout_ReferencesAreSequential(t *testing.T) {
	place := func() orderResponse {
		req := checkoutRequest{
			UserID: "user-alice",
			Items:  []itemRequest{{ProductID: "tiramisu", Quantity: 1}},
		}
		resp := doPostWithAuth(t, "/api/checkout", req, testAPIKey)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d", resp.StatusCode)
		}
		return decodeJSON[orderResponse](t, resp)
	}

	first := place()
	second := place()

	if first.Reference == second.Reference {
		t.Fatalf("two orders share reference %q", first.Reference)
	}
}

func TestCheckout_FixedAmountCoupon(t *testing.T) {
	// SAVE5: $5 off orders over $25.
	req := checkoutRequest{
		UserID:     "user-alice",
		Items:      []itemRequest{{ProductID: "macaron-mix", Quantity: 4}}, // 4 x $8.00 = $32.00
		CouponCode: "SAVE5",
	}
	resp := doPostWithAuth(t, "/api/checkout", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	order := decodeJSON[orderResponse](t, resp)
	if !almostEqual(order.Discount, 5.0) {
		t.Errorf("discount: got %v, want 5.0", order.Discount)
	}
	if order.Coupon == nil {
		t.Fatal("coupon snapshot missing")
	}
	if order.Coupon.Code != "SAVE5" {
		t.Errorf("coupon code: got %q, want SAVE5", order.Coupon.Code)
	}
}

func TestCheckout_FixedAmountCoupon_BelowMinimum(t *testing.T) {
	req := checkoutRequest{
		UserID:     "user-alice",
		Items:      []itemRequest{{ProductID: "tiramisu", Quantity: 1}}, // $5.50 < $25 minimum
		CouponCode: "SAVE5",
	}
	resp := doPostWithAuth(t, "/api/checkout", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if len(errResp.Reasons) != 1 || errResp.Reasons[0] != "minimum_amount_not_met" {
		t.Errorf("reasons: got %v, want [minimum_amount_not_met]", errResp.Reasons)
	}
}

func TestCheckout_FreeShippingCoupon(t *testing.T) {
	req := checkoutRequest{
		UserID:     "user-alice",
		Items:      []itemRequest{{ProductID: "tiramisu", Quantity: 2}},
		CouponCode: "FREESHIP",
	}
	resp := doPostWithAuth(t, "/api/checkout", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	order := decodeJSON[orderResponse](t, resp)
	// Shipping stays on the ledger; the discount cancels it.
	if !almostEqual(order.Shipping, 5.0) {
		t.Errorf("shipping: got %v, want 5.0", order.Shipping)
	}
	if !almostEqual(order.Discount, 5.0) {
		t.Errorf("discount: got %v, want 5.0", order.Discount)
	}
	if order.Coupon == nil || !order.Coupon.FreeShipping {
		t.Error("coupon snapshot missing free shipping flag")
	}
}

func TestCheckout_UnknownCoupon(t *testing.T) {
	req := checkoutRequest{
		UserID:     "user-alice",
		Items:      []itemRequest{{ProductID: "tiramisu", Quantity: 1}},
		CouponCode: "NONEXISTENT",
	}
	resp := doPostWithAuth(t, "/api/checkout", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if len(errResp.Reasons) != 1 || errResp.Reasons[0] != "not_found" {
		t.Errorf("reasons: got %v, want [not_found]", errResp.Reasons)
	}
}

func placeOrder(t *testing.T) orderResponse {
	t.Helper()

	req := checkoutRequest{
		UserID: "user-alice",
		Items:  []itemRequest{{ProductID: "waffle-berries", Quantity: 1}},
	}
	resp := doPostWithAuth(t, "/api/checkout", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order: expected 201, got %d", resp.StatusCode)
	}
	return decodeJSON[orderResponse](t, resp)
}

func changeStatus(t *testing.T, orderID string, req statusRequest) *http.Response {
	t.Helper()
	return doPostWithAuth(t, "/api/orders/"+orderID+"/status", req, testAPIKey)
}

func TestGetOrder(t *testing.T) {
	placed := placeOrder(t)

	t.Run("by id", func(t *testing.T) {
		resp := doGetWithAuth(t, "/api/orders/"+placed.ID, testAPIKey)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		got := decodeJSON[orderResponse](t, resp)
		if got.ID != placed.ID {
			t.Errorf("id: got %q, want %q", got.ID, placed.ID)
		}
	})

	t.Run("by reference", func(t *testing.T) {
		resp := doGetWithAuth(t, "/api/orders/"+placed.Reference, testAPIKey)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		got := decodeJSON[orderResponse](t, resp)
		if got.ID != placed.ID {
			t.Errorf("id: got %q, want %q", got.ID, placed.ID)
		}
	})

	t.Run("missing", func(t *testing.T) {
		resp := doGetWithAuth(t, "/api/orders/no-such-order", testAPIKey)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})
}

func TestOrderLifecycle(t *testing.T) {
	placed := placeOrder(t)

	steps := []string{"confirmed", "processing", "shipped", "delivered", "completed"}
	for _, target := range steps {
		resp := changeStatus(t, placed.ID, statusRequest{
			Status:    target,
			Actor:     "staff-7",
			ActorType: "staff",
		})

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("transition to %s: expected 200, got %d", target, resp.StatusCode)
		}
		got := decodeJSON[orderResponse](t, resp)
		resp.Body.Close()

		if got.Status != target {
			t.Fatalf("status: got %q, want %q", got.Status, target)
		}
	}

	// Full history is returned on read.
	resp := doGetWithAuth(t, "/api/orders/"+placed.ID, testAPIKey)
	defer resp.Body.Close()

	got := decodeJSON[orderResponse](t, resp)
	if len(got.History) != len(steps) {
		t.Fatalf("history: got %d records, want %d", len(got.History), len(steps))
	}
	if got.History[0].From != "pending" || got.History[0].To != "confirmed" {
		t.Errorf("first record: got %s -> %s", got.History[0].From, got.History[0].To)
	}
}

func TestChangeStatus_Illegal(t *testing.T) {
	placed := placeOrder(t)

	resp := changeStatus(t, placed.ID, statusRequest{
		Status: "shipped",
		Actor:  "staff-7",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	// The order is untouched.
	check := doGetWithAuth(t, "/api/orders/"+placed.ID, testAPIKey)
	defer check.Body.Close()

	got := decodeJSON[orderResponse](t, check)
	if got.Status != "pending" {
		t.Errorf("status after rejected transition: got %q, want pending", got.Status)
	}
	if len(got.History) != 0 {
		t.Errorf("history after rejected transition: got %d records, want 0", len(got.History))
	}
}

func TestChangeStatus_UnknownStatus(t *testing.T) {
	placed := placeOrder(t)

	resp := changeStatus(t, placed.ID, statusRequest{
		Status: "archived",
		Actor:  "staff-7",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPreviewCoupon(t *testing.T) {
	req := checkoutRequest{
		UserID:     "user-alice",
		Items:      []itemRequest{{ProductID: "macaron-mix", Quantity: 4}},
		CouponCode: "SAVE5",
	}
	resp := doPostWithAuth(t, "/api/coupons/preview", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	preview := decodeJSON[previewResponse](t, resp)
	if preview.Code != "SAVE5" {
		t.Errorf("code: got %q, want SAVE5", preview.Code)
	}
	if !almostEqual(preview.Discount, 5.0) {
		t.Errorf("discount: got %v, want 5.0", preview.Discount)
	}
}
