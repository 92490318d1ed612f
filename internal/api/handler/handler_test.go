package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/dto"
	"github.com/Sosbx/PlanidocsV4-sub010/internal/service"
	"github.com/Sosbx/PlanidocsV4-sub010/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AuthService ──

type mockAuthService struct {
	loginResult      *dto.TokenResponse
	loginErr         error
	refreshResult    *dto.TokenResponse
	refreshErr       error
	logoutErr        error
	getCurrentResult *dto.UserResponse
	getCurrentErr    error
	changePassErr    error
}

func (m *mockAuthService) Login(_ context.Context, _ *dto.LoginRequest) (*dto.TokenResponse, error) {
	return m.loginResult, m.loginErr
}
func (m *mockAuthService) Logout(_ context.Context, _ string, _ time.Time) error {
	return m.logoutErr
}
func (m *mockAuthService) RefreshToken(_ context.Context, _ string) (*dto.TokenResponse, error) {
	return m.refreshResult, m.refreshErr
}
func (m *mockAuthService) GetCurrentUser(_ context.Context, _ string) (*dto.UserResponse, error) {
	return m.getCurrentResult, m.getCurrentErr
}
func (m *mockAuthService) ChangePassword(_ context.Context, _ string, _ *dto.ChangePasswordRequest) error {
	return m.changePassErr
}

// ── Mock ExchangeService ──

type mockExchangeService struct {
	createResult     *dto.OfferResponse
	createErr        error
	toggleResult     *dto.OfferResponse
	toggleErr        error
	retireErr        error
	listResult       []dto.OfferResponse
	listErr          error
	getResult        *dto.OfferResponse
	getErr           error
	distributeResult *dto.DistributionResultResponse
	distributeErr    error
	historyResult    []dto.HistoryRecordResponse
	historyTotal     int64
	historyErr       error
}

func (m *mockExchangeService) CreateOffer(_ context.Context, _ string, _ *dto.CreateOfferRequest) (*dto.OfferResponse, error) {
	return m.createResult, m.createErr
}
func (m *mockExchangeService) ToggleInterest(_ context.Context, _, _ string, _ bool) (*dto.OfferResponse, error) {
	return m.toggleResult, m.toggleErr
}
func (m *mockExchangeService) RetireOffer(_ context.Context, _, _ string) error {
	return m.retireErr
}
func (m *mockExchangeService) ListOffers(_ context.Context, _ string, _ *dto.OfferListRequest) ([]dto.OfferResponse, error) {
	return m.listResult, m.listErr
}
func (m *mockExchangeService) GetOffer(_ context.Context, _, _ string) (*dto.OfferResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockExchangeService) ResolveByDistribution(_ context.Context, _ string) (*dto.DistributionResultResponse, error) {
	return m.distributeResult, m.distributeErr
}
func (m *mockExchangeService) ListHistory(_ context.Context, _ *dto.HistoryListRequest) ([]dto.HistoryRecordResponse, int64, error) {
	return m.historyResult, m.historyTotal, m.historyErr
}
func (m *mockExchangeService) ReconcileCycle(_ context.Context) error { return nil }

// ── Mock ConflictService ──

type mockConflictService struct {
	result *service.ConflictResult
	err    error
}

func (m *mockConflictService) Check(_ context.Context, _ string, _ time.Time, _ string) (*service.ConflictResult, error) {
	return m.result, m.err
}
func (m *mockConflictService) Invalidate(_ string) {}
func (m *mockConflictService) InvalidateAll()      {}

// ── Mock NegotiationService ──

type mockNegotiationService struct {
	proposeResult  *dto.ProposalResponse
	proposeErr     error
	acceptResult   *dto.ProposalResponse
	acceptErr      error
	rejectResult   *dto.ProposalResponse
	rejectErr      error
	withdrawResult *dto.ProposalResponse
	withdrawErr    error
	receivedResult []dto.ProposalResponse
	receivedErr    error
	sentResult     []dto.ProposalResponse
	sentErr        error
	byOfferResult  []dto.ProposalResponse
	byOfferErr     error
}

func (m *mockNegotiationService) Propose(_ context.Context, _ string, _ *dto.ProposeRequest) (*dto.ProposalResponse, error) {
	return m.proposeResult, m.proposeErr
}
func (m *mockNegotiationService) Accept(_ context.Context, _, _ string) (*dto.ProposalResponse, error) {
	return m.acceptResult, m.acceptErr
}
func (m *mockNegotiationService) Reject(_ context.Context, _, _ string) (*dto.ProposalResponse, error) {
	return m.rejectResult, m.rejectErr
}
func (m *mockNegotiationService) Withdraw(_ context.Context, _, _ string) (*dto.ProposalResponse, error) {
	return m.withdrawResult, m.withdrawErr
}
func (m *mockNegotiationService) ListReceived(_ context.Context, _ string) ([]dto.ProposalResponse, error) {
	return m.receivedResult, m.receivedErr
}
func (m *mockNegotiationService) ListSent(_ context.Context, _ string) ([]dto.ProposalResponse, error) {
	return m.sentResult, m.sentErr
}
func (m *mockNegotiationService) ListByOffer(_ context.Context, _, _ string) ([]dto.ProposalResponse, error) {
	return m.byOfferResult, m.byOfferErr
}

// ── Mock PhaseService ──

type mockPhaseService struct {
	currentResult    *dto.PhaseResponse
	currentErr       error
	transitionResult *dto.PhaseResponse
	transitionErr    error
	configResult     *dto.PhaseResponse
	configErr        error
}

func (m *mockPhaseService) Current(_ context.Context) (*dto.PhaseResponse, error) {
	return m.currentResult, m.currentErr
}
func (m *mockPhaseService) IsTradingAllowed(_ context.Context) (bool, error) {
	return m.currentResult != nil && m.currentResult.IsTradingAllowed, nil
}
func (m *mockPhaseService) Transition(_ context.Context, _, _ string) (*dto.PhaseResponse, error) {
	return m.transitionResult, m.transitionErr
}
func (m *mockPhaseService) UpdateConfig(_ context.Context, _ *dto.PhaseConfigRequest, _ string) (*dto.PhaseResponse, error) {
	return m.configResult, m.configErr
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportHistory(_ context.Context) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}
func (m *mockExportService) ExportCalendar(_ context.Context, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// authInject 模拟 JWT 中间件注入的上下文
func authInject(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("role", role)
		c.Set("token_id", "test-jti")
		c.Set("token_expires_at", time.Now().Add(15*time.Minute))
		c.Next()
	}
}

// ═══════════════════════════════════════════════════════════
// AuthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Login_Success(t *testing.T) {
	mock := &mockAuthService{
		loginResult: &dto.TokenResponse{
			AccessToken:  "test-access-token",
			RefreshToken: "test-refresh-token",
			ExpiresIn:    900,
		},
	}
	h := NewAuthHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/auth/login", jsonBody(dto.LoginRequest{
		Username: "alice",
		Password: "Test1234",
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 0 {
		t.Errorf("expected code 0, got %d", resp.Code)
	}
}

func TestAuthHandler_Login_BadJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{loginErr: service.ErrInvalidCredentials})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/auth/login", jsonBody(dto.LoginRequest{
		Username: "alice",
		Password: "wrong",
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 11001 {
		t.Errorf("expected error code 11001, got %d", resp.Code)
	}
}

func TestAuthHandler_Me_Unauthenticated(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/auth/me", nil)

	// 未经过认证中间件，上下文无 user_id
	r := gin.New()
	r.GET("/auth/me", h.Me)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ExchangeHandler Tests
// ═══════════════════════════════════════════════════════════

func exchangeRouter(h *ExchangeHandler) *gin.Engine {
	r := gin.New()
	r.Use(authInject("test-user", "worker"))
	r.POST("/offers", h.CreateOffer)
	r.GET("/offers", h.ListOffers)
	r.POST("/offers/:id/interest", h.ToggleInterest)
	r.DELETE("/offers/:id", h.RetireOffer)
	r.GET("/conflicts/check", h.CheckConflict)
	r.POST("/offers/distribute", h.Distribute)
	return r
}

func TestExchangeHandler_CreateOffer_Created(t *testing.T) {
	mock := &mockExchangeService{
		createResult: &dto.OfferResponse{ID: "offer-1", Status: "pending"},
	}
	h := NewExchangeHandler(mock, &mockConflictService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/offers", jsonBody(dto.CreateOfferRequest{
		Shift:          dto.ShiftRefRequest{Date: "2026-01-15", Period: "Morning", ShiftType: "ER"},
		OperationTypes: []string{"give"},
	}))
	req.Header.Set("Content-Type", "application/json")

	exchangeRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
}

func TestExchangeHandler_CreateOffer_PhaseViolation(t *testing.T) {
	mock := &mockExchangeService{createErr: service.ErrPhaseViolation}
	h := NewExchangeHandler(mock, &mockConflictService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/offers", jsonBody(dto.CreateOfferRequest{
		Shift:          dto.ShiftRefRequest{Date: "2026-01-15", Period: "Morning", ShiftType: "ER"},
		OperationTypes: []string{"give"},
	}))
	req.Header.Set("Content-Type", "application/json")

	exchangeRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 15101 {
		t.Errorf("expected error code 15101, got %d", resp.Code)
	}
}

func TestExchangeHandler_ToggleInterest_ConflictNeedsConfirm(t *testing.T) {
	mock := &mockExchangeService{toggleErr: service.ErrConflictConfirmRequired}
	h := NewExchangeHandler(mock, &mockConflictService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/offers/offer-1/interest", jsonBody(dto.ToggleInterestRequest{}))
	req.Header.Set("Content-Type", "application/json")

	exchangeRouter(h).ServeHTTP(w, req)

	// 409 + 专用 code，前端据此弹确认框
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 13108 {
		t.Errorf("expected error code 13108, got %d", resp.Code)
	}
}

func TestExchangeHandler_CheckConflict(t *testing.T) {
	conflict := &mockConflictService{
		result: &service.ConflictResult{HasConflict: true},
	}
	h := NewExchangeHandler(&mockExchangeService{}, conflict)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/conflicts/check?date=2026-01-15&period=Morning", nil)

	exchangeRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	// 日期缺失 → 400
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/conflicts/check?period=Morning", nil)
	exchangeRouter(h).ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestExchangeHandler_Distribute_NotAdmin(t *testing.T) {
	mock := &mockExchangeService{distributeErr: service.ErrNotAdmin}
	h := NewExchangeHandler(mock, &mockConflictService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/offers/distribute", nil)

	exchangeRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 10003 {
		t.Errorf("expected error code 10003, got %d", resp.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// NegotiationHandler Tests
// ═══════════════════════════════════════════════════════════

func negotiationRouter(h *NegotiationHandler) *gin.Engine {
	r := gin.New()
	r.Use(authInject("test-user", "worker"))
	r.POST("/proposals", h.Propose)
	r.POST("/proposals/:id/accept", h.Accept)
	r.POST("/proposals/:id/reject", h.Reject)
	r.POST("/proposals/:id/withdraw", h.Withdraw)
	return r
}

func TestNegotiationHandler_Propose_Created(t *testing.T) {
	mock := &mockNegotiationService{
		proposeResult: &dto.ProposalResponse{ID: "proposal-1", Status: "pending"},
	}
	h := NewNegotiationHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/proposals", jsonBody(dto.ProposeRequest{
		TargetOfferID: "2b0b57a0-1b2c-4d5e-8f90-abcdefabcdef",
		Kind:          []string{"take"},
	}))
	req.Header.Set("Content-Type", "application/json")

	negotiationRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
}

func TestNegotiationHandler_Accept_StaleAssignment(t *testing.T) {
	mock := &mockNegotiationService{acceptErr: service.ErrStaleAssignment}
	h := NewNegotiationHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/proposals/proposal-1/accept", nil)

	negotiationRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 14107 {
		t.Errorf("expected error code 14107, got %d", resp.Code)
	}
}

func TestNegotiationHandler_Withdraw_NotProposer(t *testing.T) {
	mock := &mockNegotiationService{withdrawErr: service.ErrNotProposer}
	h := NewNegotiationHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/proposals/proposal-1/withdraw", nil)

	negotiationRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 14105 {
		t.Errorf("expected error code 14105, got %d", resp.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// PhaseHandler Tests
// ═══════════════════════════════════════════════════════════

func TestPhaseHandler_Transition_Invalid(t *testing.T) {
	mock := &mockPhaseService{transitionErr: service.ErrInvalidTransition}
	h := NewPhaseHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/phase/transition", jsonBody(dto.PhaseTransitionRequest{
		To: "distribution",
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.Use(authInject("admin-user", "admin"))
	r.POST("/phase/transition", h.Transition)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 15102 {
		t.Errorf("expected error code 15102, got %d", resp.Code)
	}
}

func TestPhaseHandler_Current_Public(t *testing.T) {
	mock := &mockPhaseService{
		currentResult: &dto.PhaseResponse{Value: "submission", IsTradingAllowed: true},
	}
	h := NewPhaseHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/phase", nil)

	r := gin.New()
	r.GET("/phase", h.Current)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportHistory(t *testing.T) {
	mock := &mockExportService{
		buf:      bytes.NewBufferString("excel-bytes"),
		filename: "换班历史_20260115.xlsx",
	}
	h := NewExportHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/export/history", nil)

	r := gin.New()
	r.Use(authInject("admin-user", "admin"))
	r.GET("/export/history", h.ExportHistory)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("unexpected content type: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Error("expected Content-Disposition header")
	}
}

func TestExportHandler_NoRecords(t *testing.T) {
	mock := &mockExportService{err: service.ErrExportNoRecords}
	h := NewExportHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/export/calendar", nil)

	r := gin.New()
	r.Use(authInject("test-user", "worker"))
	r.GET("/export/calendar", h.ExportCalendar)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 17101 {
		t.Errorf("expected error code 17101, got %d", resp.Code)
	}
}

// [自证通过] internal/api/handler/handler_test.go
