package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/sakay-ph/payments-api/internal/common"
)

func newIdemHandler(t *testing.T) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	idem := common.Idem{R: client, TTL: time.Minute}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return idem.Middleware(next), mr
}

func postWithKey(handler http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/checkout", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestIdemFirstRequestPasses(t *testing.T) {
	handler, mr := newIdemHandler(t)

	rr := postWithKey(handler, "order-abc")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	// The stored key is the hashed header, never the raw client value.
	want := "idem:" + common.Sha256Hex("order-abc")
	if !mr.Exists(want) {
		t.Fatalf("expected redis key %s", want)
	}
}

func TestIdemDuplicateRejected(t *testing.T) {
	handler, _ := newIdemHandler(t)

	if rr := postWithKey(handler, "order-abc"); rr.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rr.Code)
	}
	rr := postWithKey(handler, "order-abc")
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", rr.Code)
	}
}

func TestIdemDistinctKeysIndependent(t *testing.T) {
	handler, _ := newIdemHandler(t)

	if rr := postWithKey(handler, "order-a"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr := postWithKey(handler, "order-b"); rr.Code != http.StatusOK {
		t.Fatalf("distinct key should pass, got %d", rr.Code)
	}
}

func TestIdemWithoutHeaderPassesThrough(t *testing.T) {
	handler, _ := newIdemHandler(t)

	for i := 0; i < 2; i++ {
		if rr := postWithKey(handler, ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d without header should pass, got %d", i, rr.Code)
		}
	}
}
