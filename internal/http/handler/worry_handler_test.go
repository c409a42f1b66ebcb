package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pyrelog/pyre/internal/app/model"
	"github.com/pyrelog/pyre/internal/app/repository"
	"github.com/pyrelog/pyre/internal/app/service"
	"github.com/pyrelog/pyre/internal/screen"
)

type mockWorryService struct {
	createFn func(ctx context.Context, content string) (*model.Worry, error)
	getFn    func(ctx context.Context, id string) (*model.Worry, error)
	burnFn   func(ctx context.Context, id string) (*service.BurnResult, error)
	patFn    func(ctx context.Context, id, originKey string) (*service.PatResult, error)
	peekFn   func(ctx context.Context) (*model.Worry, error)
	sweepFn  func(ctx context.Context) (int64, error)
}

func (m *mockWorryService) CreateWorry(ctx context.Context, content string) (*model.Worry, error) {
	return m.createFn(ctx, content)
}

func (m *mockWorryService) GetWorry(ctx context.Context, id string) (*model.Worry, error) {
	return m.getFn(ctx, id)
}

func (m *mockWorryService) BurnWorry(ctx context.Context, id string) (*service.BurnResult, error) {
	return m.burnFn(ctx, id)
}

func (m *mockWorryService) RegisterPat(ctx context.Context, id, originKey string) (*service.PatResult, error) {
	return m.patFn(ctx, id, originKey)
}

func (m *mockWorryService) Peek(ctx context.Context) (*model.Worry, error) {
	return m.peekFn(ctx)
}

func (m *mockWorryService) Sweep(ctx context.Context) (int64, error) {
	return m.sweepFn(ctx)
}

func newTestApp(t *testing.T, svc service.WorryService) *fiber.App {
	t.Helper()
	app := fiber.New()
	h := NewWorryHandler(WorryDeps{
		Worries:   svc,
		Helplines: screen.DefaultHelplines(),
		BaseURL:   "http://pyre.test",
	})
	h.Register(app)
	return app
}

func decodeBody(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return out
}

func TestCreateRecordSuccess(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &mockWorryService{
		createFn: func(_ context.Context, content string) (*model.Worry, error) {
			if content != "hello there" {
				t.Errorf("unexpected content: %q", content)
			}
			return &model.Worry{
				ID:        "abcde12345",
				Content:   content,
				CreatedAt: created,
				ExpiresAt: created.Add(24 * time.Hour),
			}, nil
		},
	}
	app := newTestApp(t, svc)

	req := httptest.NewRequest("POST", "/records", strings.NewReader(`{"content":"hello there"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp.Body)
	if body["id"] != "abcde12345" {
		t.Errorf("unexpected id: %v", body["id"])
	}
	if body["secretUrl"] != "http://pyre.test/burn/abcde12345" {
		t.Errorf("unexpected secretUrl: %v", body["secretUrl"])
	}
	if int64(body["expiresAt"].(float64)) != created.Add(24*time.Hour).UnixMilli() {
		t.Errorf("unexpected expiresAt: %v", body["expiresAt"])
	}
}

func TestCreateRecordValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty", service.ErrEmptyContent, fiber.StatusBadRequest, "empty_content"},
		{"too long", service.ErrContentTooLong, fiber.StatusBadRequest, "content_too_long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockWorryService{
				createFn: func(context.Context, string) (*model.Worry, error) {
					return nil, tt.err
				},
			}
			app := newTestApp(t, svc)

			req := httptest.NewRequest("POST", "/records", strings.NewReader(`{"content":"x"}`))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			body := decodeBody(t, resp.Body)
			if body["error"] != tt.wantCode {
				t.Errorf("expected error %q, got %v", tt.wantCode, body["error"])
			}
		})
	}
}

func TestCreateRecordSensitiveContentReturns200(t *testing.T) {
	svc := &mockWorryService{
		createFn: func(context.Context, string) (*model.Worry, error) {
			return nil, service.ErrSensitiveContent
		},
	}
	app := newTestApp(t, svc)

	req := httptest.NewRequest("POST", "/records", strings.NewReader(`{"content":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for sensitive content, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp.Body)
	if body["error"] != "sensitive_content" {
		t.Errorf("unexpected error code: %v", body["error"])
	}
	if _, ok := body["helplines"]; !ok {
		t.Error("expected helplines in sensitive content response")
	}
}

func TestGetRecordErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid id", service.ErrInvalidID, fiber.StatusBadRequest, "invalid_id"},
		{"not found", repository.ErrWorryNotFound, fiber.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockWorryService{
				getFn: func(context.Context, string) (*model.Worry, error) {
					return nil, tt.err
				},
			}
			app := newTestApp(t, svc)

			resp, err := app.Test(httptest.NewRequest("GET", "/records/abcde12345", nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			body := decodeBody(t, resp.Body)
			if body["error"] != tt.wantCode {
				t.Errorf("expected error %q, got %v", tt.wantCode, body["error"])
			}
		})
	}
}

func TestGetRecordSuccess(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &mockWorryService{
		getFn: func(_ context.Context, id string) (*model.Worry, error) {
			if id != "abcde12345" {
				t.Errorf("unexpected id: %q", id)
			}
			return &model.Worry{
				ID:        id,
				Content:   "still here",
				CreatedAt: created,
				ExpiresAt: created.Add(24 * time.Hour),
				PatCount:  3,
			}, nil
		},
	}
	app := newTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/records/abcde12345", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp.Body)
	if body["content"] != "still here" {
		t.Errorf("unexpected content: %v", body["content"])
	}
	if body["patCount"].(float64) != 3 {
		t.Errorf("unexpected patCount: %v", body["patCount"])
	}
	if body["isBurned"] != false {
		t.Errorf("unexpected isBurned: %v", body["isBurned"])
	}
}

func TestBurnRecord(t *testing.T) {
	burnedAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	svc := &mockWorryService{
		burnFn: func(_ context.Context, id string) (*service.BurnResult, error) {
			return &service.BurnResult{BurnedAt: burnedAt, Certificate: "cert-token"}, nil
		},
	}
	app := newTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/records/abcde12345", nil))
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
	if body["certificate"] != "cert-token" {
		t.Errorf("unexpected certificate: %v", body["certificate"])
	}
	if int64(body["burnedAt"].(float64)) != burnedAt.UnixMilli() {
		t.Errorf("unexpected burnedAt: %v", body["burnedAt"])
	}
}

func TestBurnRecordAlreadyBurned(t *testing.T) {
	svc := &mockWorryService{
		burnFn: func(context.Context, string) (*service.BurnResult, error) {
			return nil, repository.ErrAlreadyBurned
		},
	}
	app := newTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/records/abcde12345", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp.Body)
	if body["error"] != "already_burned" {
		t.Errorf("unexpected error code: %v", body["error"])
	}
}

func TestPatRecordDuplicateCarriesCount(t *testing.T) {
	svc := &mockWorryService{
		patFn: func(_ context.Context, id, originKey string) (*service.PatResult, error) {
			if originKey == "" {
				t.Error("expected a non-empty origin key")
			}
			return &service.PatResult{PatCount: 7, Registered: false}, nil
		},
	}
	app := newTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("POST", "/records/abcde12345/pat", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate pat, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp.Body)
	if body["error"] != "already_patted" {
		t.Errorf("unexpected error code: %v", body["error"])
	}
	if body["patCount"].(float64) != 7 {
		t.Errorf("expected current count in duplicate response, got %v", body["patCount"])
	}
}

func TestPatRecordSuccess(t *testing.T) {
	svc := &mockWorryService{
		patFn: func(context.Context, string, string) (*service.PatResult, error) {
			return &service.PatResult{PatCount: 1, Registered: true}, nil
		},
	}
	app := newTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("POST", "/records/abcde12345/pat", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp.Body)
	if body["patCount"].(float64) != 1 {
		t.Errorf("unexpected patCount: %v", body["patCount"])
	}
}

func TestPeekRecordEmpty(t *testing.T) {
	svc := &mockWorryService{
		peekFn: func(context.Context) (*model.Worry, error) {
			return nil, repository.ErrNoLiveWorries
		},
	}
	app := newTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/records/random", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for empty peek, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp.Body)
	if body["worry"] != nil {
		t.Errorf("expected nil worry, got %v", body["worry"])
	}
}

// The static random route must win over the :id parameter route; if it did
// not, "random" would be rejected as a malformed id.
func TestPeekRouteNotShadowedByID(t *testing.T) {
	peeked := false
	svc := &mockWorryService{
		peekFn: func(context.Context) (*model.Worry, error) {
			peeked = true
			return &model.Worry{ID: "abcde12345", Content: "hi"}, nil
		},
		getFn: func(context.Context, string) (*model.Worry, error) {
			t.Error("GET /records/random must not hit the :id handler")
			return nil, repository.ErrWorryNotFound
		},
	}
	app := newTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/records/random", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !peeked {
		t.Error("expected the random handler to run")
	}
}

func TestScreenContent(t *testing.T) {
	app := fiber.New()
	h := NewWorryHandler(WorryDeps{
		Screen:    screen.New([]string{"해줘"}),
		Helplines: screen.DefaultHelplines(),
	})
	h.Register(app)

	req := httptest.NewRequest("POST", "/screen", strings.NewReader(`{"content":"제발 해줘"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body := decodeBody(t, resp.Body)
	if body["flagged"] != true {
		t.Fatalf("expected flagged true, got %v", body["flagged"])
	}
	if _, ok := body["helplines"]; !ok {
		t.Error("expected helplines in flagged response")
	}

	req = httptest.NewRequest("POST", "/screen", strings.NewReader(`{"content":"괜찮아"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body = decodeBody(t, resp.Body)
	if body["flagged"] != false {
		t.Fatalf("expected flagged false, got %v", body["flagged"])
	}
}
