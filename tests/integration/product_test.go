//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func listProducts(t *testing.T) []productResponse {
	t.Helper()

	resp := doGetWithAuth(t, "/api/products", testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list products: expected 200, got %d", resp.StatusCode)
	}
	return decodeJSON[[]productResponse](t, resp)
}

func TestProductCatalog(t *testing.T) {
	products := listProducts(t)
	if len(products) != 6 {
		t.Fatalf("expected 6 seeded products, got %d", len(products))
	}

	byID := make(map[string]productResponse, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	waffle, ok := byID["waffle-berries"]
	if !ok {
		t.Fatal("product 'waffle-berries' not in listing")
	}
	if waffle.Name != "Waffle with Berries" {
		t.Errorf("name: got %q, want %q", waffle.Name, "Waffle with Berries")
	}
	if waffle.Price != 6.5 {
		t.Errorf("price: got %v, want 6.5", waffle.Price)
	}
	if waffle.Category != "Waffle" {
		t.Errorf("category: got %q, want %q", waffle.Category, "Waffle")
	}
}

func TestGetProduct(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		resp := doGetWithAuth(t, "/api/products/waffle-berries", testAPIKey)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		p := decodeJSON[productResponse](t, resp)
		if p.ID != "waffle-berries" || p.Name != "Waffle with Berries" {
			t.Errorf("unexpected product: %+v", p)
		}
	})

	t.Run("missing", func(t *testing.T) {
		resp := doGetWithAuth(t, "/api/products/no-such-product", testAPIKey)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
		if errResp := decodeJSON[errorResponse](t, resp); errResp.Code != 404 {
			t.Errorf("error code: got %d, want 404", errResp.Code)
		}
	})

	t.Run("no api key", func(t *testing.T) {
		resp := doGet(t, "/api/products")
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
	})
}
