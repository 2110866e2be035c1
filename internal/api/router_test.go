package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/ussd-relay/internal/api"
	"github.com/ayo6706/ussd-relay/internal/api/middleware"
	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/ayo6706/ussd-relay/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret = "test-secret-0123456789-test-secret"
	testDeviceKey = "device-secret"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func (f *fakeUsers) CreateUser(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.CreatedAt = time.Now()
	f.users[u.ID] = u
	return nil
}

func (f *fakeUsers) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

type fakeTransfers struct {
	submitErr error
	getErr    error
	lastInput service.SubmitTransferInput
}

func (f *fakeTransfers) Submit(_ context.Context, in service.SubmitTransferInput) (*models.TransferRequest, error) {
	f.lastInput = in
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &models.TransferRequest{ID: 7, OwnerID: in.OwnerID, Status: domain.TransferStatusDelayed, OperatorCode: "ORANGE"}, nil
}

func (f *fakeTransfers) Get(_ context.Context, callerID uuid.UUID, _ string, id int64) (*models.TransferRequest, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &models.TransferRequest{ID: id, OwnerID: callerID, Status: domain.TransferStatusPending}, nil
}

func (f *fakeTransfers) List(context.Context, uuid.UUID, int32, int32) ([]models.TransferRequest, error) {
	return nil, nil
}

type fakeBalances struct {
	cancelled []uuid.UUID
}

func (f *fakeBalances) Request(_ context.Context, ownerID uuid.UUID, operator string) (models.BalanceJob, error) {
	if operator == "BIP" {
		return models.BalanceJob{}, service.ErrUnknownOperator
	}
	return models.BalanceJob{JobID: "1-" + ownerID.String(), OwnerID: ownerID, Operator: operator, Status: domain.BalanceStatusPending}, nil
}

func (f *fakeBalances) Cancel(ownerID uuid.UUID) bool {
	f.cancelled = append(f.cancelled, ownerID)
	return false
}

type fakeDispatcher struct {
	job       *models.TransferJob
	deviceIDs []string
	resultErr error
}

func (f *fakeDispatcher) PollForWork(_ context.Context, deviceID string) (*models.TransferJob, error) {
	f.deviceIDs = append(f.deviceIDs, deviceID)
	job := f.job
	f.job = nil
	return job, nil
}

func (f *fakeDispatcher) ReportResult(_ context.Context, id int64, status, carrierResponse string) (*models.TransferRequest, error) {
	if f.resultErr != nil {
		return nil, f.resultErr
	}
	return &models.TransferRequest{ID: id, Status: status, CarrierResponse: &carrierResponse}, nil
}

type fakeExecutor struct {
	jobs     map[uuid.UUID]*models.BalanceJob
	reported *models.BalanceOutcome
}

func (f *fakeExecutor) ClaimForOwner(ownerID uuid.UUID) (*models.BalanceJob, bool) {
	job, ok := f.jobs[ownerID]
	return job, ok
}

func (f *fakeExecutor) ClaimNext() (*models.BalanceJob, bool) {
	for _, job := range f.jobs {
		return job, true
	}
	return nil, false
}

func (f *fakeExecutor) Report(_ context.Context, ownerID uuid.UUID, outcome models.BalanceOutcome) (*models.BalanceJob, error) {
	job, ok := f.jobs[ownerID]
	if !ok {
		return nil, service.ErrBalanceJobNotFound
	}
	f.reported = &outcome
	return job, nil
}

type fakeQueue struct{}

func (fakeQueue) Snapshot(context.Context) (models.QueueSnapshot, error) {
	return models.QueueSnapshot{"pending": 2, "delayed": 1}, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testServer struct {
	handler    http.Handler
	auth       *middleware.Authenticator
	users      *fakeUsers
	transfers  *fakeTransfers
	balances   *fakeBalances
	dispatcher *fakeDispatcher
	executor   *fakeExecutor
	db         *pinger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	auth, err := middleware.NewAuthenticator(testJWTSecret, "ussd-relay", "ussd-relay-api")
	require.NoError(t, err)

	s := &testServer{
		auth:       auth,
		users:      &fakeUsers{users: map[uuid.UUID]*models.User{}},
		transfers:  &fakeTransfers{},
		balances:   &fakeBalances{},
		dispatcher: &fakeDispatcher{},
		executor:   &fakeExecutor{jobs: map[uuid.UUID]*models.BalanceJob{}},
		db:         &pinger{},
	}
	router := api.NewRouter(api.Deps{
		Logger:             zap.NewNop(),
		Auth:               auth,
		DeviceAPIKey:       testDeviceKey,
		DB:                 s.db,
		Users:              s.users,
		Transfers:          s.transfers,
		Balances:           s.balances,
		Dispatcher:         s.dispatcher,
		Executor:           s.executor,
		Queue:              fakeQueue{},
		PublicRateLimitRPS: 1000,
		AuthRateLimitRPS:   1000,
		DeviceRateLimitRPS: 1000,
	})
	s.handler = router.Routes()
	return s
}

func (s *testServer) token(t *testing.T, role string) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	s.users.users[id] = &models.User{ID: id, ChatHandle: "@u" + id.String()[:8], Role: role}
	token, _, err := s.auth.IssueToken(id, role)
	require.NoError(t, err)
	return id, token
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) device(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Device-Key", testDeviceKey)
	req.Header.Set("X-Device-ID", "pixel-7")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/readyz", "", nil).Code)

	s.db.err = errors.New("down")
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/readyz", "", nil).Code)

	rr := s.do(http.MethodGet, "/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/v1/device/transfers/claim")
}

func TestUserSignupAndLogin(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/v1/users", "", map[string]string{"chat_handle": "@rija_r", "display_name": "Rija"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var user models.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
	assert.Equal(t, domain.RoleUser, user.Role)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/users", "", map[string]string{"chat_handle": "x"}).Code)

	rr = s.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"user_id": user.ID.String()})
	require.Equal(t, http.StatusOK, rr.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &login))
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/transfers", login.Token, nil).Code)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"user_id": uuid.NewString()}).Code)
}

func TestCreateTransfer(t *testing.T) {
	s := newTestServer(t)
	ownerID, token := s.token(t, domain.RoleUser)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/transfers", "", map[string]interface{}{"recipient_phone": "0321234567", "amount": 100}).Code)

	rr := s.do(http.MethodPost, "/v1/transfers", token, map[string]interface{}{"recipient_phone": "0321234567", "amount": 100})
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, ownerID, s.transfers.lastInput.OwnerID)
	assert.Equal(t, int64(100), s.transfers.lastInput.Amount)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "delayed", body["status"])

	tests := []struct {
		err  error
		want int
	}{
		{err: service.ErrDuplicateRecipient, want: http.StatusConflict},
		{err: service.ErrUnsupportedRecipient, want: http.StatusUnprocessableEntity},
		{err: domain.ErrInvalidPhone, want: http.StatusBadRequest},
		{err: domain.ErrInvalidAmount, want: http.StatusBadRequest},
		{err: errors.New("db exploded"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		s.transfers.submitErr = tt.err
		rr := s.do(http.MethodPost, "/v1/transfers", token, map[string]interface{}{"recipient_phone": "0321234567", "amount": 100})
		assert.Equal(t, tt.want, rr.Code, tt.err.Error())
		assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	}

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/transfers", token, map[string]interface{}{"unexpected": true}).Code)
}

func TestGetTransferHidesOtherOwners(t *testing.T) {
	s := newTestServer(t)
	_, token := s.token(t, domain.RoleUser)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/transfers/5", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/transfers/abc", token, nil).Code)

	s.transfers.getErr = service.ErrForbidden
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/transfers/5", token, nil).Code)
}

func TestAdminQueueRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	_, userToken := s.token(t, domain.RoleUser)
	_, adminToken := s.token(t, domain.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/v1/admin/queue", userToken, nil).Code)

	rr := s.do(http.MethodGet, "/v1/admin/queue", adminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"counts":{"pending":2,"delayed":1}}`, rr.Body.String())
}

func TestDeviceTransferFlow(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/device/transfers/claim", nil)
	req.Header.Set("X-Device-Key", "wrong")
	req.Header.Set("X-Device-ID", "pixel-7")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	assert.Equal(t, http.StatusNoContent, s.device(http.MethodPost, "/v1/device/transfers/claim", nil).Code)

	s.dispatcher.job = &models.TransferJob{ID: 3, RecipientPhone: "0321234567", Amount: 500, OperatorCode: "ORANGE"}
	rr = s.device(http.MethodPost, "/v1/device/transfers/claim", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"id":3,"recipient_phone":"0321234567","amount":500,"operator_code":"ORANGE"}`, rr.Body.String())
	assert.Equal(t, []string{"pixel-7", "pixel-7"}, s.dispatcher.deviceIDs)

	rr = s.device(http.MethodPost, "/v1/device/transfers/3/result", map[string]string{"status": "success", "carrier_response": "ok"})
	assert.Equal(t, http.StatusOK, rr.Code)

	s.dispatcher.resultErr = service.ErrTransferNotProcessing
	assert.Equal(t, http.StatusConflict, s.device(http.MethodPost, "/v1/device/transfers/3/result", map[string]string{"status": "success"}).Code)
	s.dispatcher.resultErr = service.ErrTransferNotFound
	assert.Equal(t, http.StatusNotFound, s.device(http.MethodPost, "/v1/device/transfers/3/result", map[string]string{"status": "success"}).Code)
	s.dispatcher.resultErr = service.ErrInvalidResultStatus
	assert.Equal(t, http.StatusBadRequest, s.device(http.MethodPost, "/v1/device/transfers/3/result", map[string]string{"status": "done"}).Code)
}

func TestBalanceInquiryFlow(t *testing.T) {
	s := newTestServer(t)
	ownerID, token := s.token(t, domain.RoleUser)

	rr := s.do(http.MethodPost, "/v1/balance-inquiries", token, map[string]string{"operator": "telma"})
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Contains(t, rr.Body.String(), `"operator":"TELMA"`)

	assert.Equal(t, http.StatusUnprocessableEntity, s.do(http.MethodPost, "/v1/balance-inquiries", token, map[string]string{"operator": "BIP"}).Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/v1/balance-inquiries", token, nil).Code)
	assert.Equal(t, []uuid.UUID{ownerID}, s.balances.cancelled)

	path := "/v1/device/balance-jobs/" + ownerID.String()
	assert.Equal(t, http.StatusNoContent, s.device(http.MethodPost, path+"/claim", nil).Code)
	assert.Equal(t, http.StatusNoContent, s.device(http.MethodPost, "/v1/device/balance-jobs/claim", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.device(http.MethodPost, "/v1/device/balance-jobs/not-a-uuid/claim", nil).Code)

	s.executor.jobs[ownerID] = &models.BalanceJob{JobID: "j1", OwnerID: ownerID, Operator: "TELMA", Status: domain.BalanceStatusProcessing}
	assert.Equal(t, http.StatusOK, s.device(http.MethodPost, path+"/claim", nil).Code)

	assert.Equal(t, http.StatusBadRequest, s.device(http.MethodPost, path+"/result", map[string]interface{}{"success": true, "balance": "lots"}).Code)

	rr = s.device(http.MethodPost, path+"/result", map[string]interface{}{"success": true, "balance": "12 500,50"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, s.executor.reported)
	assert.Equal(t, "12500.50", s.executor.reported.Balance.StringFixed(2))

	other := "/v1/device/balance-jobs/" + uuid.NewString() + "/result"
	assert.Equal(t, http.StatusNotFound, s.device(http.MethodPost, other, map[string]interface{}{"success": false}).Code)
}
