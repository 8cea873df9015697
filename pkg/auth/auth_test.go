package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestKeyringValidate(t *testing.T) {
	k := NewKeyring()
	key, err := k.Generate("ci", 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := k.Validate(key); err != nil {
		t.Errorf("expected valid key, got %v", err)
	}
	if err := k.Validate(key + "x"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey for altered key, got %v", err)
	}
	if err := k.Validate("short"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey for short key, got %v", err)
	}

	k.Revoke(key)
	if err := k.Validate(key); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected revoked key to be rejected, got %v", err)
	}
}

func TestKeyringExpiry(t *testing.T) {
	k := NewKeyring()
	if err := k.Add("static-key-123", "env", time.Nanosecond); err != nil {
		t.Fatalf("Add: %v", err)
	}
	time.Sleep(time.Millisecond)
	if err := k.Validate("static-key-123"); !errors.Is(err, ErrKeyExpired) {
		t.Errorf("expected ErrKeyExpired, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	k := NewKeyring()
	if err := k.Add("static-key-123", "env", 0); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(k, "/health")(ok)

	cases := []struct {
		path, header string
		want         int
	}{
		{"/runs", "", http.StatusUnauthorized},
		{"/runs", "Bearer wrong-key-000", http.StatusUnauthorized},
		{"/runs", "static-key-123", http.StatusUnauthorized},
		{"/runs", "Bearer static-key-123", http.StatusOK},
		{"/health", "", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("%s %q: expected %d, got %d", tc.path, tc.header, tc.want, w.Code)
		}
	}

	// no keys configured: everything is open
	w := httptest.NewRecorder()
	Middleware(NewKeyring())(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected open access without keys, got %d", w.Code)
	}
}
