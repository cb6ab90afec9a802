//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestHealthProbes(t *testing.T) {
	// Both probes are unauthenticated: the orchestrator calls them without
	// an API key.
	for _, path := range []string{"/livez", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			resp := doGet(t, path)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("GET %s: expected 200, got %d", path, resp.StatusCode)
			}
			if body := decodeJSON[healthResponse](t, resp); body.Status != "ok" {
				t.Fatalf("GET %s: expected status ok, got %q", path, body.Status)
			}
		})
	}
}
