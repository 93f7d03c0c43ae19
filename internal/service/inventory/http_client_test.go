package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

func TestHTTPClient_ReserveReleaseAvailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reservations", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req reserveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.VariantID == "sold-out" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		if req.VariantID == "flaky" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(reserveResponse{ReservationID: "res-" + req.VariantID})
	})
	mux.HandleFunc("/reservations/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path == "/reservations/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/availability", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "v-1", r.URL.Query().Get("variant_id"))
		_ = json.NewEncoder(w).Encode(availabilityResponse{Available: 12})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewHTTPClient(srv.URL+"/", srv.Client())
	ctx := context.Background()

	id, err := client.Reserve(ctx, "v-1", "main", 2)
	require.NoError(t, err)
	require.Equal(t, "res-v-1", id)

	_, err = client.Reserve(ctx, "sold-out", "main", 2)
	require.True(t, errors.Is(err, domain.ErrInventoryUnavailable), "got %v", err)

	_, err = client.Reserve(ctx, "flaky", "main", 2)
	require.True(t, errors.Is(err, domain.ErrInventoryTemporary), "got %v", err)

	require.NoError(t, client.Release(ctx, "res-v-1"))
	require.NoError(t, client.Release(ctx, "gone"))

	free, err := client.Available(ctx, "v-1", "main")
	require.NoError(t, err)
	require.EqualValues(t, 12, free)
}
