package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/confero/checkin-api/internal/domain"
	"github.com/confero/checkin-api/internal/http/handlers"
	mw "github.com/confero/checkin-api/internal/http/middleware"
	"github.com/confero/checkin-api/internal/notify"
	"github.com/confero/checkin-api/pkg/auth"
)

const testSecret = "handler-test-secret"

type mockApprovalService struct {
	approveFn   func(ctx context.Context, id string, actor domain.Actor, note string) (*domain.ApprovalResult, error)
	rejectFn    func(ctx context.Context, id string, actor domain.Actor) (*domain.ApprovalResult, error)
	validateFn  func(ctx context.Context, cred string) (*domain.ScanSummary, error)
	ownStatusFn func(ctx context.Context, id string) (*domain.StatusResponse, error)
	ownCredFn   func(ctx context.Context, id string) (*domain.CredentialResponse, error)
	scheduleFn  func(ctx context.Context, id string) ([]string, error)
	listFn      func(ctx context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.Participant, error)
	getFn       func(ctx context.Context, id string) (*domain.Participant, []domain.ApprovalLog, error)
	resetFn     func(ctx context.Context, actor domain.Actor) (int64, error)
}

func (m *mockApprovalService) Approve(ctx context.Context, id string, actor domain.Actor, note string) (*domain.ApprovalResult, error) {
	return m.approveFn(ctx, id, actor, note)
}

func (m *mockApprovalService) Reject(ctx context.Context, id string, actor domain.Actor) (*domain.ApprovalResult, error) {
	return m.rejectFn(ctx, id, actor)
}

func (m *mockApprovalService) ValidateCredential(ctx context.Context, cred string) (*domain.ScanSummary, error) {
	return m.validateFn(ctx, cred)
}

func (m *mockApprovalService) OwnStatus(ctx context.Context, id string) (*domain.StatusResponse, error) {
	return m.ownStatusFn(ctx, id)
}

func (m *mockApprovalService) OwnCredential(ctx context.Context, id string) (*domain.CredentialResponse, error) {
	return m.ownCredFn(ctx, id)
}

func (m *mockApprovalService) OwnSchedule(ctx context.Context, id string) ([]string, error) {
	return m.scheduleFn(ctx, id)
}

func (m *mockApprovalService) ListParticipants(ctx context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.Participant, error) {
	return m.listFn(ctx, status, limit, offset)
}

func (m *mockApprovalService) GetParticipant(ctx context.Context, id string) (*domain.Participant, []domain.ApprovalLog, error) {
	return m.getFn(ctx, id)
}

func (m *mockApprovalService) BulkReset(ctx context.Context, actor domain.Actor) (int64, error) {
	return m.resetFn(ctx, actor)
}

type mockAuthService struct {
	loginFn   func(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	refreshFn func(ctx context.Context, refreshToken string) (*domain.LoginResponse, error)
}

func (m *mockAuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	return m.loginFn(ctx, req)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*domain.LoginResponse, error) {
	return m.refreshFn(ctx, refreshToken)
}

func newTestServer(approval *mockApprovalService, authSvc *mockAuthService, roster *notify.Roster) *httptest.Server {
	if roster == nil {
		roster = notify.NewRoster()
	}
	h := handlers.New(approval, authSvc, roster)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/refresh", h.RefreshToken)
		})
		r.Route("/me", func(r chi.Router) {
			r.Use(mw.RequireJWT(testSecret, domain.RoleParticipant))
			r.Get("/status", h.OwnStatus)
			r.Get("/qr", h.OwnCredential)
			r.Get("/schedule", h.OwnSchedule)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.RequireJWT(testSecret, domain.RoleAdmin, domain.RoleSuperAdmin))
			r.Post("/scan", h.Scan)
			r.Get("/participants", h.ListParticipants)
			r.Post("/participants/reset", h.BulkReset)
			r.Get("/participants/{id}", h.GetParticipant)
			r.Post("/participants/{id}/approve", h.Approve)
			r.Post("/participants/{id}/reject", h.Reject)
			r.Get("/roster/summary", h.RosterSummary)
		})
	})

	return httptest.NewServer(r)
}

func mintToken(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := auth.NewAccessToken(sub, sub+"@example.com", role, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	return tok
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, data
}

func TestScanHandler(t *testing.T) {
	approval := &mockApprovalService{
		validateFn: func(_ context.Context, cred string) (*domain.ScanSummary, error) {
			if cred == "known-code" {
				return &domain.ScanSummary{
					ParticipantID: "p1",
					Name:          "Ada",
					Email:         "ada@example.com",
					Status:        domain.StatusApproved,
					Approved:      true,
					Assignments:   []string{"workshop-a"},
				}, nil
			}
			return nil, domain.ErrNotFound
		},
	}
	server := newTestServer(approval, &mockAuthService{}, nil)
	defer server.Close()

	adminTok := mintToken(t, "7", "admin")

	t.Run("match", func(t *testing.T) {
		resp, body := doJSON(t, "POST", server.URL+"/v1/admin/scan", adminTok, map[string]string{"qr_data": "known-code"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		var summary domain.ScanSummary
		if err := json.Unmarshal(body, &summary); err != nil {
			t.Fatalf("failed to decode summary: %v", err)
		}
		if summary.ParticipantID != "p1" || !summary.Approved {
			t.Fatalf("unexpected summary: %+v", summary)
		}
	})

	t.Run("unmatched code is 404", func(t *testing.T) {
		resp, body := doJSON(t, "POST", server.URL+"/v1/admin/scan", adminTok, map[string]string{"qr_data": "no-such-code"})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
		if !bytes.Contains(body, []byte("invalid QR code")) {
			t.Fatalf("expected invalid QR code message, got %s", body)
		}
	})

	t.Run("missing qr_data", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", server.URL+"/v1/admin/scan", adminTok, map[string]string{})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("no token", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", server.URL+"/v1/admin/scan", "", map[string]string{"qr_data": "known-code"})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
	})
}

func TestApproveHandler(t *testing.T) {
	var gotActor domain.Actor
	var gotNote string
	approval := &mockApprovalService{
		approveFn: func(_ context.Context, id string, actor domain.Actor, note string) (*domain.ApprovalResult, error) {
			gotActor = actor
			gotNote = note
			if id == "missing" {
				return nil, domain.ErrNotFound
			}
			now := time.Now()
			return &domain.ApprovalResult{
				Participant: &domain.Participant{ID: id, Status: domain.StatusApproved, ApprovedAt: &now},
				Changed:     true,
			}, nil
		},
	}
	server := newTestServer(approval, &mockAuthService{}, nil)
	defer server.Close()

	t.Run("approve with note", func(t *testing.T) {
		resp, body := doJSON(t, "POST", server.URL+"/v1/admin/participants/p1/approve", mintToken(t, "7", "admin"), map[string]string{"note": "verified at desk"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		if gotActor.Role != domain.RoleAdmin || gotActor.ID != "7" {
			t.Fatalf("unexpected actor: %+v", gotActor)
		}
		if gotNote != "verified at desk" {
			t.Fatalf("expected note to pass through, got %q", gotNote)
		}
		var result domain.ApprovalResult
		if err := json.Unmarshal(body, &result); err != nil {
			t.Fatalf("failed to decode result: %v", err)
		}
		if !result.Changed {
			t.Fatal("expected changed=true")
		}
	})

	t.Run("approve without body", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", server.URL+"/v1/admin/participants/p1/approve", mintToken(t, "7", "admin"), nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 with empty body, got %d", resp.StatusCode)
		}
		if gotNote != "" {
			t.Fatalf("expected empty note, got %q", gotNote)
		}
	})

	t.Run("unknown participant", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", server.URL+"/v1/admin/participants/missing/approve", mintToken(t, "7", "admin"), nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("participant role rejected by router", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", server.URL+"/v1/admin/participants/p1/approve", mintToken(t, "p1", "participant"), nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
	})
}

func TestRejectHandler(t *testing.T) {
	approval := &mockApprovalService{
		rejectFn: func(_ context.Context, id string, actor domain.Actor) (*domain.ApprovalResult, error) {
			return &domain.ApprovalResult{
				Participant: &domain.Participant{ID: id, Status: domain.StatusRejected},
				Changed:     true,
			}, nil
		},
	}
	server := newTestServer(approval, &mockAuthService{}, nil)
	defer server.Close()

	resp, body := doJSON(t, "POST", server.URL+"/v1/admin/participants/p1/reject", mintToken(t, "1", "superadmin"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var result domain.ApprovalResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.Participant.Status != domain.StatusRejected {
		t.Fatalf("expected rejected status, got %s", result.Participant.Status)
	}
}

func TestListParticipantsHandler(t *testing.T) {
	var gotStatus *domain.ApprovalStatus
	var gotLimit, gotOffset int
	approval := &mockApprovalService{
		listFn: func(_ context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.Participant, error) {
			gotStatus, gotLimit, gotOffset = status, limit, offset
			return []domain.Participant{{ID: "p1", Status: domain.StatusPending}}, nil
		},
	}
	server := newTestServer(approval, &mockAuthService{}, nil)
	defer server.Close()

	adminTok := mintToken(t, "7", "admin")

	t.Run("status filter and pagination", func(t *testing.T) {
		resp, _ := doJSON(t, "GET", server.URL+"/v1/admin/participants?status=pending&limit=5&offset=10", adminTok, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if gotStatus == nil || *gotStatus != domain.StatusPending {
			t.Fatalf("expected pending filter, got %v", gotStatus)
		}
		if gotLimit != 5 || gotOffset != 10 {
			t.Fatalf("expected limit=5 offset=10, got %d/%d", gotLimit, gotOffset)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		resp, _ := doJSON(t, "GET", server.URL+"/v1/admin/participants", adminTok, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if gotStatus != nil || gotLimit != 20 || gotOffset != 0 {
			t.Fatalf("expected default pagination, got %v %d/%d", gotStatus, gotLimit, gotOffset)
		}
	})

	t.Run("bad status filter", func(t *testing.T) {
		resp, _ := doJSON(t, "GET", server.URL+"/v1/admin/participants?status=wat", adminTok, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestGetParticipantHandler(t *testing.T) {
	approval := &mockApprovalService{
		getFn: func(_ context.Context, id string) (*domain.Participant, []domain.ApprovalLog, error) {
			if id != "p1" {
				return nil, nil, domain.ErrNotFound
			}
			return &domain.Participant{ID: "p1", Status: domain.StatusApproved}, nil, nil
		},
	}
	server := newTestServer(approval, &mockAuthService{}, nil)
	defer server.Close()

	resp, body := doJSON(t, "GET", server.URL+"/v1/admin/participants/p1", mintToken(t, "7", "admin"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload struct {
		Participant domain.Participant   `json:"participant"`
		ApprovalLog []domain.ApprovalLog `json:"approval_log"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.Participant.ID != "p1" {
		t.Fatalf("unexpected participant: %+v", payload.Participant)
	}
	if payload.ApprovalLog == nil {
		t.Fatal("expected approval_log to be an empty array, not null")
	}
}

func TestOwnStatusAndCredentialHandlers(t *testing.T) {
	approval := &mockApprovalService{
		ownStatusFn: func(_ context.Context, id string) (*domain.StatusResponse, error) {
			return &domain.StatusResponse{ParticipantID: id, Status: domain.StatusPending, Approved: false}, nil
		},
		ownCredFn: func(_ context.Context, id string) (*domain.CredentialResponse, error) {
			return &domain.CredentialResponse{ParticipantID: id, QRCode: "encoded-credential"}, nil
		},
		scheduleFn: func(_ context.Context, id string) ([]string, error) {
			return []string{"keynote", "workshop-b"}, nil
		},
	}
	server := newTestServer(approval, &mockAuthService{}, nil)
	defer server.Close()

	tok := mintToken(t, "p1", "participant")

	t.Run("own status", func(t *testing.T) {
		resp, body := doJSON(t, "GET", server.URL+"/v1/me/status", tok, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var status domain.StatusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			t.Fatalf("failed to decode status: %v", err)
		}
		if status.ParticipantID != "p1" || status.Status != domain.StatusPending {
			t.Fatalf("unexpected status: %+v", status)
		}
	})

	t.Run("own credential", func(t *testing.T) {
		resp, body := doJSON(t, "GET", server.URL+"/v1/me/qr", tok, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var cred domain.CredentialResponse
		if err := json.Unmarshal(body, &cred); err != nil {
			t.Fatalf("failed to decode credential: %v", err)
		}
		if cred.QRCode != "encoded-credential" {
			t.Fatalf("unexpected credential: %+v", cred)
		}
	})

	t.Run("own schedule", func(t *testing.T) {
		resp, body := doJSON(t, "GET", server.URL+"/v1/me/schedule", tok, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var payload map[string][]string
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("failed to decode schedule: %v", err)
		}
		if len(payload["sessions"]) != 2 {
			t.Fatalf("unexpected schedule: %+v", payload)
		}
	})
}

func TestRosterSummaryHandler(t *testing.T) {
	roster := notify.NewRoster()
	roster.Prime([]domain.Participant{
		{ID: "p1", Status: domain.StatusApproved},
		{ID: "p2", Status: domain.StatusPending},
	})
	server := newTestServer(&mockApprovalService{}, &mockAuthService{}, roster)
	defer server.Close()

	resp, body := doJSON(t, "GET", server.URL+"/v1/admin/roster/summary", mintToken(t, "7", "admin"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var summary notify.RosterSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if summary.Total != 2 || summary.Approved != 1 || summary.Pending != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestBulkResetHandler(t *testing.T) {
	approval := &mockApprovalService{
		resetFn: func(_ context.Context, actor domain.Actor) (int64, error) {
			if actor.Role != domain.RoleSuperAdmin {
				return 0, domain.ErrForbidden
			}
			return 42, nil
		},
	}
	server := newTestServer(approval, &mockAuthService{}, nil)
	defer server.Close()

	t.Run("superadmin", func(t *testing.T) {
		resp, body := doJSON(t, "POST", server.URL+"/v1/admin/participants/reset", mintToken(t, "1", "superadmin"), nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		var payload map[string]int64
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if payload["deleted"] != 42 {
			t.Fatalf("expected deleted=42, got %d", payload["deleted"])
		}
	})

	t.Run("plain admin is forbidden", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", server.URL+"/v1/admin/participants/reset", mintToken(t, "7", "admin"), nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
	})
}

func TestLoginHandler(t *testing.T) {
	authSvc := &mockAuthService{
		loginFn: func(_ context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
			if req.Email == "admin@example.com" && req.Password == "correct" {
				return &domain.LoginResponse{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 900, Role: domain.RoleAdmin}, nil
			}
			return nil, domain.ErrUnauthorized
		},
	}
	server := newTestServer(&mockApprovalService{}, authSvc, nil)
	defer server.Close()

	t.Run("success", func(t *testing.T) {
		resp, body := doJSON(t, "POST", server.URL+"/v1/auth/login", "", map[string]string{"email": "admin@example.com", "password": "correct"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		var res domain.LoginResponse
		if err := json.Unmarshal(body, &res); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if res.AccessToken != "at" || res.Role != domain.RoleAdmin {
			t.Fatalf("unexpected response: %+v", res)
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", server.URL+"/v1/auth/login", "", map[string]string{"email": "admin@example.com", "password": "wrong"})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		req, _ := http.NewRequest("POST", server.URL+"/v1/auth/login", bytes.NewReader([]byte("{not json")))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestRefreshHandler(t *testing.T) {
	authSvc := &mockAuthService{
		refreshFn: func(_ context.Context, refreshToken string) (*domain.LoginResponse, error) {
			if refreshToken == "good-refresh" {
				return &domain.LoginResponse{AccessToken: "new-at", RefreshToken: "new-rt", ExpiresIn: 900, Role: domain.RoleParticipant}, nil
			}
			return nil, domain.ErrUnauthorized
		},
	}
	server := newTestServer(&mockApprovalService{}, authSvc, nil)
	defer server.Close()

	t.Run("success", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", server.URL+"/v1/auth/refresh", "", map[string]string{"refresh_token": "good-refresh"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", server.URL+"/v1/auth/refresh", "", map[string]string{})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})
}
