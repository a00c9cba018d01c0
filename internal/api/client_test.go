package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"homebudget/internal/log"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	return NewClient(srv.URL, logger), srv
}

func TestDoAttachesBearerToken(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))

	if _, err := client.Budgets(context.Background(), "abc123"); err != nil {
		t.Fatalf("Budgets: %v", err)
	}
	if gotAuth != "Bearer abc123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer abc123")
	}
}

func TestDoOmitsAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))

	if err := client.Register(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization header should be absent, got %q", gotAuth)
	}
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message field preferred", `{"message":"budget limit exceeded","detail":"ignored"}`, "budget limit exceeded"},
		{"detail fallback", `{"detail":"Incorrect username or password"}`, "Incorrect username or password"},
		{"generic fallback", `{"code":42}`, genericMessage},
		{"non-JSON body", `<html>boom</html>`, genericMessage},
		{"empty body", ``, genericMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			}))

			_, err := client.Budgets(context.Background(), "tok")
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if apiErr.Message != tt.want {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.want)
			}
		})
	}
}

func TestUnauthorizedUnwraps(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))

	_, err := client.Budgets(context.Background(), "expired")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	client403, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail":"Not enough permissions"}`))
	}))
	_, err = client403.Budgets(context.Background(), "tok")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("403 must unwrap to ErrUnauthorized, got %v", err)
	}

	// A business rejection must not look like an auth failure.
	client2, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"nope"}`))
	}))
	_, err = client2.Budgets(context.Background(), "tok")
	if errors.Is(err, ErrUnauthorized) {
		t.Fatal("422 must not unwrap to ErrUnauthorized")
	}
}

func TestTransportErrorIsGeneric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	client := NewClient(srv.URL, logger)

	_, err := client.Budgets(context.Background(), "tok")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}
