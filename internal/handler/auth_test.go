package handler_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/auth"
	"github.com/sakif/postvault/internal/handler"
	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/service"
)

func newAuthHandler(svc *MockAuthService) *handler.AuthHandler {
	return handler.NewAuthHandler(svc, auth.Cookies{Secure: true}, testLogger())
}

// cookiesByName indexes the Set-Cookie headers of a response.
func cookiesByName(rr *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rr.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func session() *service.AuthResult {
	return &service.AuthResult{
		User:         &model.User{ID: "u1", Username: "ada"},
		AccessToken:  "access.jwt",
		RefreshToken: "refresh.jwt",
	}
}

func TestAuthHandler_HandleSignup(t *testing.T) {
	svc := new(MockAuthService)
	in := service.SignupInput{Username: "ada", Email: "ada@example.com", Password: "correct horse"}
	svc.On("Signup", mock.Anything, in).
		Return(&service.SignupResult{User: &model.User{ID: "u1"}, VerificationEmailSent: true}, nil)
	h := newAuthHandler(svc)

	body := `{"username":"ada","email":"ada@example.com","password":"correct horse"}`
	rr := httptest.NewRecorder()
	h.HandleSignup(rr, httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"verificationEmailSent":true`)
	assert.Empty(t, rr.Result().Cookies(), "signup must not open a session")
}

func TestAuthHandler_HandleLogin(t *testing.T) {
	t.Run("sets both session cookies", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Login", mock.Anything, "ada@example.com", "pw").Return(session(), nil)
		h := newAuthHandler(svc)

		body := `{"email":"ada@example.com","password":"pw"}`
		rr := httptest.NewRecorder()
		h.HandleLogin(rr, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body)))

		require.Equal(t, http.StatusOK, rr.Code)
		cookies := cookiesByName(rr)
		require.Contains(t, cookies, auth.AccessCookie)
		require.Contains(t, cookies, auth.RefreshCookie)

		access := cookies[auth.AccessCookie]
		assert.Equal(t, "access.jwt", access.Value)
		assert.True(t, access.HttpOnly)
		assert.True(t, access.Secure)
		assert.Equal(t, "/", access.Path)
		assert.Equal(t, "/auth", cookies[auth.RefreshCookie].Path)

		assert.NotContains(t, rr.Body.String(), "access.jwt", "tokens stay out of the body")
	})

	t.Run("wrong password", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Login", mock.Anything, "ada@example.com", "bad").
			Return(nil, apperror.Unauthorized("invalid email or password"))
		h := newAuthHandler(svc)

		body := `{"email":"ada@example.com","password":"bad"}`
		rr := httptest.NewRecorder()
		h.HandleLogin(rr, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body)))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Empty(t, rr.Result().Cookies())
	})

	t.Run("unverified account", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Login", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, apperror.Forbidden("verify your email address before logging in"))
		h := newAuthHandler(svc)

		rr := httptest.NewRecorder()
		h.HandleLogin(rr, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"a@b.c","password":"p"}`)))

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestAuthHandler_HandleRefresh(t *testing.T) {
	t.Run("missing cookie", func(t *testing.T) {
		svc := new(MockAuthService)
		h := newAuthHandler(svc)

		rr := httptest.NewRecorder()
		h.HandleRefresh(rr, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		svc.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
	})

	t.Run("rotates the session", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Refresh", mock.Anything, "old.refresh").Return(session(), nil)
		h := newAuthHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: auth.RefreshCookie, Value: "old.refresh"})
		rr := httptest.NewRecorder()
		h.HandleRefresh(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "refresh.jwt", cookiesByName(rr)[auth.RefreshCookie].Value)
	})

	t.Run("expired token clears cookies", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Refresh", mock.Anything, "stale").
			Return(nil, apperror.Unauthorized("session expired, log in again"))
		h := newAuthHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: auth.RefreshCookie, Value: "stale"})
		rr := httptest.NewRecorder()
		h.HandleRefresh(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, -1, cookiesByName(rr)[auth.RefreshCookie].MaxAge)
	})
}

func TestAuthHandler_HandleLogout(t *testing.T) {
	rr := httptest.NewRecorder()
	newAuthHandler(new(MockAuthService)).HandleLogout(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	cookies := cookiesByName(rr)
	assert.Equal(t, -1, cookies[auth.AccessCookie].MaxAge)
	assert.Equal(t, -1, cookies[auth.RefreshCookie].MaxAge)
}

func TestAuthHandler_PasswordRecovery(t *testing.T) {
	t.Run("forgot password is accepted", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("ForgotPassword", mock.Anything, "ada@example.com").Return(nil)
		h := newAuthHandler(svc)

		rr := httptest.NewRecorder()
		h.HandleForgotPassword(rr, httptest.NewRequest(http.MethodPost, "/auth/password/forgot",
			bytes.NewBufferString(`{"email":"ada@example.com"}`)))

		assert.Equal(t, http.StatusAccepted, rr.Code)
	})

	t.Run("mail outage is 502", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("ForgotPassword", mock.Anything, mock.Anything).
			Return(apperror.Upstream("mail service", assert.AnError))
		h := newAuthHandler(svc)

		rr := httptest.NewRecorder()
		h.HandleForgotPassword(rr, httptest.NewRequest(http.MethodPost, "/auth/password/forgot",
			bytes.NewBufferString(`{"email":"ada@example.com"}`)))

		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.NotContains(t, rr.Body.String(), assert.AnError.Error())
	})

	t.Run("reset", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("ResetPassword", mock.Anything, "tok", "new password").Return(nil)
		h := newAuthHandler(svc)

		rr := httptest.NewRecorder()
		h.HandleResetPassword(rr, httptest.NewRequest(http.MethodPost, "/auth/password/reset",
			bytes.NewBufferString(`{"token":"tok","password":"new password"}`)))

		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})
}

func TestAuthHandler_HandleVerify(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		svc := new(MockAuthService)
		rr := httptest.NewRecorder()
		newAuthHandler(svc).HandleVerify(rr, httptest.NewRequest(http.MethodGet, "/auth/verify", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("activates", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Verify", mock.Anything, "tok").Return(&model.User{ID: "u1", Status: model.UserActive}, nil)
		rr := httptest.NewRecorder()
		newAuthHandler(svc).HandleVerify(rr, httptest.NewRequest(http.MethodGet, "/auth/verify?token=tok", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestAuthHandler_GitHub(t *testing.T) {
	t.Run("login stores state and redirects", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("GitHubAuthURL", mock.AnythingOfType("string")).Return("https://github.test/authorize", nil)
		h := newAuthHandler(svc)

		rr := httptest.NewRecorder()
		h.HandleGitHubLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))

		assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
		assert.Equal(t, "https://github.test/authorize", rr.Header().Get("Location"))
		state := cookiesByName(rr)[auth.StateCookie]
		require.NotNil(t, state)
		svc.AssertCalled(t, "GitHubAuthURL", state.Value)
	})

	callback := func(query, stateCookie string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/auth/github/callback"+query, nil)
		if stateCookie != "" {
			req.AddCookie(&http.Cookie{Name: auth.StateCookie, Value: stateCookie})
		}
		return req
	}

	t.Run("state mismatch", func(t *testing.T) {
		svc := new(MockAuthService)
		rr := httptest.NewRecorder()
		newAuthHandler(svc).HandleGitHubCallback(rr, callback("?code=c&state=evil", "good"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "GitHubCallback", mock.Anything, mock.Anything)
	})

	t.Run("missing state cookie", func(t *testing.T) {
		svc := new(MockAuthService)
		rr := httptest.NewRecorder()
		newAuthHandler(svc).HandleGitHubCallback(rr, callback("?code=c&state=s", ""))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("user denied", func(t *testing.T) {
		svc := new(MockAuthService)
		rr := httptest.NewRecorder()
		newAuthHandler(svc).HandleGitHubCallback(rr, callback("?error=access_denied&state=s", "s"))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/?auth=denied", rr.Header().Get("Location"))
	})

	t.Run("success", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("GitHubCallback", mock.Anything, "c").Return(session(), nil)
		rr := httptest.NewRecorder()
		newAuthHandler(svc).HandleGitHubCallback(rr, callback("?code=c&state=s", "s"))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		cookies := cookiesByName(rr)
		assert.Equal(t, "access.jwt", cookies[auth.AccessCookie].Value)
		assert.Equal(t, -1, cookies[auth.StateCookie].MaxAge, "state is single-use")
	})

	t.Run("exchange failure", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("GitHubCallback", mock.Anything, "c").Return(nil, apperror.Unauthorized("GitHub login failed"))
		rr := httptest.NewRecorder()
		newAuthHandler(svc).HandleGitHubCallback(rr, callback("?code=c&state=s", "s"))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
