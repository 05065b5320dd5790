package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/vetsub/internal/authorization"
	clinicdomain "github.com/smallbiznis/vetsub/internal/clinic/domain"
	"github.com/smallbiznis/vetsub/internal/config"
	"github.com/smallbiznis/vetsub/internal/observability"
	referencedomain "github.com/smallbiznis/vetsub/internal/reference/domain"
	"github.com/smallbiznis/vetsub/internal/scheduler"
	staffdomain "github.com/smallbiznis/vetsub/internal/staff/domain"
	subscriptiondomain "github.com/smallbiznis/vetsub/internal/subscription/domain"
	"go.uber.org/zap"
)

const (
	clinicID       = "1789000000000000001"
	subscriptionID = "1789000000000000002"
	staffID        = "1789000000000000003"
)

type fakeSubscriptionService struct {
	createReq   subscriptiondomain.CreateSubscriptionRequest
	transitions []subscriptiondomain.TransitionRequest
	err         error
}

func (f *fakeSubscriptionService) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.TransitionResult, error) {
	f.createReq = req
	if f.err != nil {
		return subscriptiondomain.TransitionResult{}, f.err
	}
	return subscriptiondomain.TransitionResult{
		Record: subscriptiondomain.SubscriptionRecord{
			ID:     snowflake.ID(2),
			Status: subscriptiondomain.SubscriptionStatusActive,
		},
		ClinicStatus: clinicdomain.ClinicStatusActive,
	}, nil
}

func (f *fakeSubscriptionService) transition(req subscriptiondomain.TransitionRequest, status subscriptiondomain.SubscriptionStatus) (subscriptiondomain.TransitionResult, error) {
	f.transitions = append(f.transitions, req)
	if f.err != nil {
		return subscriptiondomain.TransitionResult{}, f.err
	}
	return subscriptiondomain.TransitionResult{
		Record:       subscriptiondomain.SubscriptionRecord{ID: snowflake.ID(3), Status: status},
		ClinicStatus: clinicdomain.ClinicStatus(status),
	}, nil
}

func (f *fakeSubscriptionService) Suspend(ctx context.Context, req subscriptiondomain.TransitionRequest) (subscriptiondomain.TransitionResult, error) {
	return f.transition(req, subscriptiondomain.SubscriptionStatusSuspended)
}

func (f *fakeSubscriptionService) Reactivate(ctx context.Context, req subscriptiondomain.TransitionRequest) (subscriptiondomain.TransitionResult, error) {
	return f.transition(req, subscriptiondomain.SubscriptionStatusActive)
}

func (f *fakeSubscriptionService) Refund(ctx context.Context, req subscriptiondomain.TransitionRequest) (subscriptiondomain.TransitionResult, error) {
	return f.transition(req, subscriptiondomain.SubscriptionStatusRefunded)
}

func (f *fakeSubscriptionService) GetByID(ctx context.Context, id string) (subscriptiondomain.RecordView, error) {
	if f.err != nil {
		return subscriptiondomain.RecordView{}, f.err
	}
	return subscriptiondomain.RecordView{DaysLeft: 12}, nil
}

func (f *fakeSubscriptionService) ListByClinic(ctx context.Context, clinicID string) ([]subscriptiondomain.RecordView, error) {
	return []subscriptiondomain.RecordView{{DaysLeft: 3}}, f.err
}

type fakeStaffService struct {
	err error
}

func (f *fakeStaffService) Create(ctx context.Context, req staffdomain.CreateStaffRequest) (staffdomain.StaffAccount, error) {
	return staffdomain.StaffAccount{FullName: req.FullName}, f.err
}

func (f *fakeStaffService) Deactivate(ctx context.Context, id string) (staffdomain.StaffAccount, error) {
	return staffdomain.StaffAccount{}, f.err
}

func (f *fakeStaffService) Reactivate(ctx context.Context, id string) (staffdomain.StaffAccount, error) {
	return staffdomain.StaffAccount{}, f.err
}

func (f *fakeStaffService) List(ctx context.Context, req staffdomain.ListStaffRequest) ([]staffdomain.StaffAccount, error) {
	return nil, f.err
}

func (f *fakeStaffService) CheckCanAddAccount(ctx context.Context, clinicID string) (staffdomain.Allowance, error) {
	return staffdomain.Allowance{}, f.err
}

func (f *fakeStaffService) Allowance(ctx context.Context, clinicID string) (staffdomain.Allowance, error) {
	return staffdomain.Allowance{PlanAccounts: 5, ExtraAccounts: 2, Allowed: 7, Used: 6}, f.err
}

type fakeClinicService struct{}

func (fakeClinicService) Create(ctx context.Context, req clinicdomain.CreateClinicRequest) (clinicdomain.Clinic, error) {
	return clinicdomain.Clinic{Name: req.Name, Status: clinicdomain.ClinicStatusInactive}, nil
}

func (fakeClinicService) List(ctx context.Context, req clinicdomain.ListClinicRequest) ([]clinicdomain.Clinic, error) {
	return nil, nil
}

func (fakeClinicService) GetByID(ctx context.Context, id string) (clinicdomain.Clinic, error) {
	return clinicdomain.Clinic{}, clinicdomain.ErrNotFound
}

type fakeReferenceService struct{}

func (fakeReferenceService) ListPlans(ctx context.Context) ([]referencedomain.SubscriptionPlan, error) {
	return []referencedomain.SubscriptionPlan{{Code: "basic-monthly", DurationDays: 30}}, nil
}

func (fakeReferenceService) ListPaymentMethods(ctx context.Context) ([]referencedomain.PaymentMethod, error) {
	return nil, nil
}

func (fakeReferenceService) Seed(ctx context.Context, ref config.ReferenceConfig) (referencedomain.SeedResult, error) {
	return referencedomain.SeedResult{}, nil
}

type fakeSweeper struct {
	calls int
	err   error
}

func (f *fakeSweeper) RunOnce(ctx context.Context) (scheduler.SweepSummary, error) {
	f.calls++
	return scheduler.SweepSummary{Date: "2024-02-15", Clinics: 2, Succeeded: 1, Failed: 1}, f.err
}

type testServer struct {
	engine        *gin.Engine
	subscriptions *fakeSubscriptionService
	staff         *fakeStaffService
	sweeper       *fakeSweeper
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	enforcer, err := authorization.NewEnforcer()
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}

	ts := &testServer{
		engine:        NewEngine(observability.Config{}),
		subscriptions: &fakeSubscriptionService{},
		staff:         &fakeStaffService{},
		sweeper:       &fakeSweeper{},
	}
	srv := NewServer(ServerParams{
		Gin:             ts.engine,
		Log:             zap.NewNop(),
		AuthzSvc:        authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		ReferenceSvc:    fakeReferenceService{},
		ClinicSvc:       fakeClinicService{},
		SubscriptionSvc: ts.subscriptions,
		StaffSvc:        ts.staff,
	})
	srv.sweeper = ts.sweeper
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(HeaderActorID, "actor-1")
		req.Header.Set(HeaderActorRole, role)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func TestCreateSubscriptionPassesClinicFromPath(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/clinics/"+clinicID+"/subscriptions", authorization.RoleSiteOwner, map[string]any{
		"plan_id":           "11",
		"payment_method_id": "12",
		"amount_paid":       25000,
		"start_date":        "2024-02-01",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if ts.subscriptions.createReq.ClinicID != clinicID {
		t.Fatalf("expected clinic id %s, got %q", clinicID, ts.subscriptions.createReq.ClinicID)
	}
	if ts.subscriptions.createReq.StartDate != "2024-02-01" {
		t.Fatalf("unexpected start date %q", ts.subscriptions.createReq.StartDate)
	}

	var resp struct {
		Data subscriptiondomain.TransitionResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.ClinicStatus != clinicdomain.ClinicStatusActive {
		t.Fatalf("expected clinic status ACTIVE, got %s", resp.Data.ClinicStatus)
	}
}

func TestMissingActorIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/plans", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestClinicOwnerCannotRunLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/subscriptions/"+subscriptionID+"/suspend", authorization.RoleClinicOwner, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if len(ts.subscriptions.transitions) != 0 {
		t.Fatalf("service should not be called")
	}
}

func TestSiteOwnerInheritsClinicOwnerPolicies(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/clinics/"+clinicID+"/staff/allowance", authorization.RoleSiteOwner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTransitionWithoutBody(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/subscriptions/"+subscriptionID+"/refund", authorization.RoleSiteOwner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(ts.subscriptions.transitions) != 1 || ts.subscriptions.transitions[0].SubscriptionID != subscriptionID {
		t.Fatalf("unexpected transitions %+v", ts.subscriptions.transitions)
	}
}

func TestTransitionForwardsComment(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/subscriptions/"+subscriptionID+"/suspend", authorization.RoleSiteOwner, map[string]string{"comment": "  unpaid invoice "})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := ts.subscriptions.transitions[0].Comment; got != "unpaid invoice" {
		t.Fatalf("expected trimmed comment, got %q", got)
	}
}

func TestDomainErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err      error
		status   int
		errType  string
		wantCode string
	}{
		{subscriptiondomain.ErrOverlappingSubscription, http.StatusConflict, "overlapping_subscription", ""},
		{subscriptiondomain.ErrInvalidTransition, http.StatusConflict, "invalid_status_transition", ""},
		{subscriptiondomain.ErrClinicSuspended, http.StatusConflict, "suspended_clinic", ""},
		{subscriptiondomain.ErrSubscriptionNotFound, http.StatusNotFound, "not_found", ""},
		{subscriptiondomain.ErrInvalidStartDate, http.StatusBadRequest, "validation_error", "invalid_start_date"},
		{subscriptiondomain.ErrCommentRequired, http.StatusBadRequest, "validation_error", "comment_required"},
		{fmt.Errorf("%w: %w", subscriptiondomain.ErrPersistence, context.DeadlineExceeded), http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tc := range cases {
		t.Run(tc.errType+"/"+tc.err.Error(), func(t *testing.T) {
			ts := newTestServer(t)
			ts.subscriptions.err = tc.err

			rec := ts.do(t, http.MethodPost, "/api/subscriptions/"+subscriptionID+"/suspend", authorization.RoleSiteOwner, nil)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			payload := decodeError(t, rec)
			if payload.Type != tc.errType {
				t.Fatalf("expected type %s, got %s", tc.errType, payload.Type)
			}
			if tc.wantCode != "" && (len(payload.Errors) != 1 || payload.Errors[0].Code != tc.wantCode) {
				t.Fatalf("expected code %s, got %+v", tc.wantCode, payload.Errors)
			}
		})
	}
}

func TestAccountLimitExceededIsConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.staff.err = staffdomain.ErrAccountLimitExceeded

	rec := ts.do(t, http.MethodPost, "/api/clinics/"+clinicID+"/staff", authorization.RoleClinicOwner, map[string]string{
		"full_name": "Dr. Rina",
		"email":     "rina@example.com",
		"role":      "DOCTOR",
		"password":  "correct-horse",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if payload := decodeError(t, rec); payload.Type != "account_limit_exceeded" {
		t.Fatalf("unexpected error type %s", payload.Type)
	}
}

func TestInvalidPathIDIsValidationError(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/subscriptions/not-a-number", authorization.RoleSiteOwner, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUnknownClinicIsNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/clinics/"+clinicID, authorization.RoleClinicOwner, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRunSweepReturnsSummary(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/admin/sweeps", authorization.RoleSystem, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ts.sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d", ts.sweeper.calls)
	}

	var resp struct {
		Data scheduler.SweepSummary `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Succeeded != 1 || resp.Data.Failed != 1 {
		t.Fatalf("unexpected summary %+v", resp.Data)
	}
}

func TestRunSweepForbiddenForClinicOwner(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/admin/sweeps", authorization.RoleClinicOwner, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if ts.sweeper.calls != 0 {
		t.Fatalf("sweep should not run")
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/unknown", authorization.RoleSiteOwner, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
