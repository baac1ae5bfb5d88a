package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dept-site-api/internal/application/auth"
	"github.com/dept-site-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) RequestCode(ctx context.Context, email string, intent domain.Intent) error {
	return m.Called(ctx, email, intent).Error(0)
}
func (m *mockAuthSvc) ConfirmCode(ctx context.Context, email, code string) (bool, error) {
	args := m.Called(ctx, email, code)
	return args.Bool(0), args.Error(1)
}
func (m *mockAuthSvc) CompleteAction(ctx context.Context, email string, intent domain.Intent, input auth.CompleteInput) (*domain.Account, error) {
	args := m.Called(ctx, email, intent, input)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAuthSvc) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	args := m.Called(ctx, email, password)
	if r, _ := args.Get(0).(*auth.LoginResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestRequestCode_Accepted(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("RequestCode", mock.Anything, "kim@dept.ac.kr", domain.IntentRegister).Return(nil)

	rr := postJSON(t, NewAuthHandler(svc).RequestCode, map[string]string{"email": "kim@dept.ac.kr", "intent": "register"})
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestRequestCode_DeliveryFailure(t *testing.T) {
	svc := &mockAuthSvc{}
	smtpErr := fmt.Errorf("send register code: %w: %w", domain.ErrDelivery,
		errors.New("535 5.7.8 authentication failed for mail.dept.ac.kr:587"))
	svc.On("RequestCode", mock.Anything, mock.Anything, mock.Anything).Return(smtpErr)

	rr := postJSON(t, NewAuthHandler(svc).RequestCode, map[string]string{"email": "kim@dept.ac.kr", "intent": "register"})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "verification email could not be delivered")
	assert.NotContains(t, rr.Body.String(), "mail.dept.ac.kr")
	assert.NotContains(t, rr.Body.String(), "535")
}

func TestRequestCode_UnknownField(t *testing.T) {
	rr := postJSON(t, NewAuthHandler(&mockAuthSvc{}).RequestCode, map[string]string{"email": "a@b.c", "phone": "010"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConfirmCode_Outcomes(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ConfirmCode", mock.Anything, "kim@dept.ac.kr", "123456").Return(true, nil)
	svc.On("ConfirmCode", mock.Anything, "kim@dept.ac.kr", "111111").Return(false, domain.ErrCodeMismatch)
	svc.On("ConfirmCode", mock.Anything, "old@dept.ac.kr", "123456").Return(false, domain.ErrCodeExpired)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.ConfirmCode, confirmRequest{Email: "kim@dept.ac.kr", Code: "123456"})
	assert.Equal(t, http.StatusOK, rr.Code)
	var env VerifiedEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.True(t, env.Verified)

	assert.Equal(t, http.StatusBadRequest, postJSON(t, h.ConfirmCode, confirmRequest{Email: "kim@dept.ac.kr", Code: "111111"}).Code)
	assert.Equal(t, http.StatusGone, postJSON(t, h.ConfirmCode, confirmRequest{Email: "old@dept.ac.kr", Code: "123456"}).Code)
}

func TestConfirmCode_MalformedCodeNeverReachesService(t *testing.T) {
	svc := &mockAuthSvc{}
	rr := postJSON(t, NewAuthHandler(svc).ConfirmCode, confirmRequest{Email: "kim@dept.ac.kr", Code: "12ab56"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "ConfirmCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_Created(t *testing.T) {
	svc := &mockAuthSvc{}
	acc := &domain.Account{AccountID: "a1", Email: "new@dept.ac.kr", Role: domain.RoleAdmin, PasswordHash: "secret-hash"}
	svc.On("CompleteAction", mock.Anything, "new@dept.ac.kr", domain.IntentRegister,
		auth.CompleteInput{Name: "Lee", Password: "pw-123456"}).Return(acc, nil)

	rr := postJSON(t, NewAuthHandler(svc).Register, completeRequest{Email: "new@dept.ac.kr", Name: "Lee", Password: "pw-123456"})
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret-hash")
}

func TestResetPassword_NotVerified(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("CompleteAction", mock.Anything, "kim@dept.ac.kr", domain.IntentForgotPassword, mock.Anything).
		Return(nil, domain.ErrCodeNotVerified)

	rr := postJSON(t, NewAuthHandler(svc).ResetPassword, completeRequest{Email: "kim@dept.ac.kr", Password: "pw-123456"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestLogin(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Login", mock.Anything, "kim@dept.ac.kr", "good").
		Return(&auth.LoginResult{Token: "tok", Account: &domain.Account{AccountID: "a1"}}, nil)
	svc.On("Login", mock.Anything, "kim@dept.ac.kr", "bad").Return(nil, domain.ErrUnauthorized)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.Login, loginRequest{Email: "kim@dept.ac.kr", Password: "good"})
	require.Equal(t, http.StatusOK, rr.Code)
	var env AuthEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, "tok", env.Bearer)

	assert.Equal(t, http.StatusUnauthorized, postJSON(t, h.Login, loginRequest{Email: "kim@dept.ac.kr", Password: "bad"}).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(t, h.Login, loginRequest{Email: "kim@dept.ac.kr"}).Code)
}
