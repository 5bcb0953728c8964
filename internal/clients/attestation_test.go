package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, baseURL string, maxAttempts int) *AttestationClient {
	t.Helper()
	return NewAttestationClient(zap.NewNop(), AttestationConfig{
		BaseURL:      baseURL,
		PollInterval: time.Millisecond,
		MaxAttempts:  maxAttempts,
	})
}

func TestFetchAttestationCompleteAfterPending(t *testing.T) {
	contentHash := crypto.Keccak256Hash([]byte("message"))
	attestation := "0xdeadbeef"

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/"+contentHash.Hex(), r.URL.Path)
		n := atomic.AddInt32(&calls, 1)
		resp := AttestationResponse{Status: AttestationStatusPending}
		if n >= 3 {
			resp = AttestationResponse{Status: AttestationStatusComplete, Attestation: attestation}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 30)
	got, err := client.FetchAttestation(context.Background(), contentHash)
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, got)
	// Terminal success returns immediately on the completing attempt.
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchAttestationTimeout(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(AttestationResponse{Status: AttestationStatusPending})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 5)
	_, err := client.FetchAttestation(context.Background(), crypto.Keccak256Hash([]byte("m")))
	require.ErrorIs(t, err, ErrAttestationTimeout)
	// The budget is attempts, not elapsed time: exactly maxAttempts polls.
	require.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestFetchAttestationTransportErrorsAreRetryFuel(t *testing.T) {
	contentHash := crypto.Keccak256Hash([]byte("flaky"))

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(AttestationResponse{
			Status:      AttestationStatusComplete,
			Attestation: "0x01",
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 30)
	got, err := client.FetchAttestation(context.Background(), contentHash)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, got)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchAttestationUnknownStatusKeepsPolling(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		resp := AttestationResponse{Status: "reorg_detected"}
		if n >= 2 {
			resp = AttestationResponse{Status: AttestationStatusComplete, Attestation: "0x02"}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 30)
	got, err := client.FetchAttestation(context.Background(), crypto.Keccak256Hash([]byte("m")))
	require.NoError(t, err)
	require.Equal(t, []byte{0x02}, got)
}

func TestFetchAttestationCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(AttestationResponse{Status: AttestationStatusPending})
	}))
	defer srv.Close()

	client := NewAttestationClient(zap.NewNop(), AttestationConfig{
		BaseURL:      srv.URL,
		PollInterval: time.Minute,
		MaxAttempts:  30,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.FetchAttestation(ctx, crypto.Keccak256Hash([]byte("m")))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrAttestationTimeout))
}

func TestFetchAttestationMalformedAttestation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(AttestationResponse{
			Status:      AttestationStatusComplete,
			Attestation: "not-hex",
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 3)
	_, err := client.FetchAttestation(context.Background(), crypto.Keccak256Hash([]byte("m")))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrAttestationTimeout))
}

func TestCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 1)
	require.NoError(t, client.CheckHealth(context.Background()))

	srv.Close()
	require.Error(t, client.CheckHealth(context.Background()))
}
