package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

type fakeVectorCounter struct {
	count int64
	err   error
}

func (f fakeVectorCounter) CountVectors(ctx context.Context) (int64, error) {
	return f.count, f.err
}

func newHealthTestApp(db Pinger, vectors VectorCounter) *fiber.App {
	app := fiber.New()
	NewHealthHandler(db, vectors, "DocuChat").Register(app)
	return app
}

func TestHealth_Healthy(t *testing.T) {
	app := newHealthTestApp(fakePinger{}, fakeVectorCounter{count: 42})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "healthy" || body["vectors"] != float64(42) {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	app := newHealthTestApp(fakePinger{err: errors.New("connection refused")}, fakeVectorCounter{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestHealth_VectorCountFailure(t *testing.T) {
	app := newHealthTestApp(fakePinger{}, fakeVectorCounter{err: errors.New("relation chunks does not exist")})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the vector count fails, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "unhealthy" || body["error"] == "" {
		t.Fatalf("expected the error surfaced, got %+v", body)
	}
}
