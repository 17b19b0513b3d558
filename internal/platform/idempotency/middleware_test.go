package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/requestctx"
)

var fixedTime = time.Date(2026, time.March, 2, 15, 0, 0, 0, time.UTC)

func newPaymentRequest(t *testing.T, key, body, session string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/payments", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	ctx := requestctx.WithTenant(req.Context(), "tenant-a")
	ctx = requestctx.WithSession(ctx, session)
	return req.WithContext(ctx)
}

func TestMiddlewareRequiresKey(t *testing.T) {
	called := false
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newPaymentRequest(t, "", `{"orderId":"o-1"}`, "s-1"))

	if called {
		t.Fatal("handler must not run without a key")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	assertErrorCode(t, rr.Body.Bytes(), "idempotency_key_required")
}

func TestMiddlewareReplaysCompletedResponse(t *testing.T) {
	calls := 0
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"redirectUrl":"https://pay.example/r/1"}`))
		}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newPaymentRequest(t, "k-1", `{"orderId":"o-1"}`, "s-1"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newPaymentRequest(t, "k-1", `{"orderId":"o-1"}`, "s-1"))

	if calls != 1 {
		t.Fatalf("expected one handler call, got %d", calls)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if second.Header().Get(replayHeaderName) != "true" {
		t.Fatal("expected replay header")
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("expected identical body, got %q vs %q", second.Body.String(), first.Body.String())
	}
}

func TestMiddlewareScopesKeysBySession(t *testing.T) {
	calls := 0
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newPaymentRequest(t, "shared", `{}`, "s-1"))
	handler.ServeHTTP(httptest.NewRecorder(), newPaymentRequest(t, "shared", `{}`, "s-2"))

	if calls != 2 {
		t.Fatalf("expected separate sessions to run independently, got %d calls", calls)
	}
}

func TestMiddlewareRejectsReusedKeyWithDifferentBody(t *testing.T) {
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newPaymentRequest(t, "k-2", `{"orderId":"o-1"}`, "s-1"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newPaymentRequest(t, "k-2", `{"orderId":"o-2"}`, "s-1"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	assertErrorCode(t, rr.Body.Bytes(), "idempotency_key_conflict")
}

func TestMiddlewareInFlightKeyConflicts(t *testing.T) {
	store := NewMemoryStore()
	handler := Middleware(store, WithClock(func() time.Time { return fixedTime }))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler must not run while key is in flight")
		}))

	req := newPaymentRequest(t, "k-3", `{"orderId":"o-1"}`, "s-1")
	body, err := bufferBody(req)
	if err != nil {
		t.Fatalf("buffer body: %v", err)
	}
	scope := requesterScope(req)
	if _, err := store.Reserve(context.Background(), "k-3|"+scope, fingerprintRequest(req, body, scope), fixedTime, time.Hour); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	assertErrorCode(t, rr.Body.Bytes(), "idempotency_in_progress")
}

func TestMiddlewareDoesNotStoreServerErrors(t *testing.T) {
	calls := 0
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newPaymentRequest(t, "k-4", `{}`, "s-1"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newPaymentRequest(t, "k-4", `{}`, "s-1"))

	if first.Code != http.StatusBadGateway || second.Code != http.StatusCreated {
		t.Fatalf("expected 502 then 201, got %d then %d", first.Code, second.Code)
	}
	if calls != 2 {
		t.Fatalf("expected retry to reach handler, got %d calls", calls)
	}
}

func TestMiddlewareReleasesKeyWhenPersistFails(t *testing.T) {
	store := &failingStore{}
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newPaymentRequest(t, "k-5", `{}`, "s-1"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	assertErrorCode(t, rr.Body.Bytes(), "idempotency_store_error")
	if !store.released {
		t.Fatal("expected reservation release")
	}
}

func TestMemoryStoreCleanupRemovesExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.Reserve(ctx, "old", "fp", fixedTime, time.Minute); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := store.Reserve(ctx, "new", "fp", fixedTime.Add(time.Hour), time.Hour); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	removed, err := store.CleanupExpired(ctx, fixedTime.Add(30*time.Minute), 10)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
}

type failingStore struct {
	released bool
}

func (s *failingStore) Reserve(context.Context, string, string, time.Time, time.Duration) (Reservation, error) {
	return Reservation{State: ReservationNew}, nil
}

func (s *failingStore) Complete(context.Context, string, string, Response, time.Time, time.Duration) error {
	return errors.New("write failed")
}

func (s *failingStore) Release(context.Context, string) error {
	s.released = true
	return nil
}

func (s *failingStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func assertErrorCode(t *testing.T, payload []byte, expected string) {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if body.Error != expected {
		t.Fatalf("expected error %s, got %s", expected, body.Error)
	}
}
