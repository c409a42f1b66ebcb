package handler

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pyrelog/pyre/internal/app/model"
	"github.com/pyrelog/pyre/internal/app/service"
)

type mockEventRepository struct {
	createFn func(ctx context.Context, event *model.LifecycleEvent) error
	countFn  func(ctx context.Context, kind string) (int64, error)
}

func (m *mockEventRepository) Create(ctx context.Context, event *model.LifecycleEvent) error {
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func (m *mockEventRepository) CountByKind(ctx context.Context, kind string) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, kind)
	}
	return 0, nil
}

func newCronApp(svc service.WorryService, secret string) *fiber.App {
	app := fiber.New()
	h := NewCronHandler(CronDeps{Worries: svc, Events: &mockEventRepository{}, Secret: secret})
	h.Register(app)
	return app
}

func TestCleanupRequiresBearerSecret(t *testing.T) {
	svc := &mockWorryService{
		sweepFn: func(context.Context) (int64, error) {
			t.Error("sweep must not run for unauthorized callers")
			return 0, nil
		},
	}
	app := newCronApp(svc, "s3cret")

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic s3cret"},
		{"wrong secret", "Bearer other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/cron/cleanup", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != fiber.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.StatusCode)
			}
		})
	}
}

func TestCleanupRejectsAllWhenSecretUnset(t *testing.T) {
	svc := &mockWorryService{
		sweepFn: func(context.Context) (int64, error) {
			t.Error("sweep must not run when no secret is configured")
			return 0, nil
		},
	}
	app := newCronApp(svc, "")

	req := httptest.NewRequest("GET", "/cron/cleanup", nil)
	req.Header.Set("Authorization", "Bearer ")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestStatsRequiresBearerSecret(t *testing.T) {
	events := &mockEventRepository{
		countFn: func(context.Context, string) (int64, error) {
			t.Error("counts must not run for unauthorized callers")
			return 0, nil
		},
	}
	app := fiber.New()
	h := NewCronHandler(CronDeps{Events: events, Secret: "s3cret"})
	h.Register(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/cron/stats", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestStatsReportsLifetimeCounts(t *testing.T) {
	counts := map[string]int64{
		model.EventWorryCreated: 12,
		model.EventWorryBurned:  5,
		model.EventWorryPatted:  30,
		model.EventSweepPurged:  2,
	}
	events := &mockEventRepository{
		countFn: func(_ context.Context, kind string) (int64, error) {
			return counts[kind], nil
		},
	}
	app := fiber.New()
	h := NewCronHandler(CronDeps{Events: events, Secret: "s3cret"})
	h.Register(app)

	req := httptest.NewRequest("GET", "/cron/stats", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp.Body)
	for field, want := range map[string]int64{
		"created": 12, "burned": 5, "patted": 30, "swept": 2,
	} {
		if got := int64(body[field].(float64)); got != want {
			t.Errorf("%s = %d, want %d", field, got, want)
		}
	}
}

func TestCleanupReportsDeletedCount(t *testing.T) {
	svc := &mockWorryService{
		sweepFn: func(context.Context) (int64, error) {
			return 4, nil
		},
	}
	app := newCronApp(svc, "s3cret")

	req := httptest.NewRequest("GET", "/cron/cleanup", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp.Body)
	if body["success"] != true {
		t.Errorf("expected success true, got %v", body["success"])
	}
	if body["deletedCount"].(float64) != 4 {
		t.Errorf("unexpected deletedCount: %v", body["deletedCount"])
	}
	if body["timestamp"] == "" {
		t.Error("expected a timestamp in the response")
	}
}
