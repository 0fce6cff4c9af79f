package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/auth"
	"github.com/sakif/postvault/internal/service"
)

// AuthHandler manages signup, login, sessions and the GitHub OAuth flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignup, HandleVerify, HandleResend → credentials accounts
//   - HandleLogin, HandleRefresh, HandleLogout → session cookies
//   - HandleForgotPassword, HandleResetPassword → password recovery
//   - HandleGitHubLogin, HandleGitHubCallback  → OAuth
//
// SESSION COOKIES:
// The access token ("token", 15 min) and refresh token ("refresh_token",
// 7 days, path /auth) are both HttpOnly. JavaScript never sees a token; the
// browser sends them, the auth middleware reads them.
type AuthHandler struct {
	auth    AuthService
	cookies auth.Cookies
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc AuthService, cookies auth.Cookies, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, cookies: cookies, logger: logger}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// HandleSignup creates a pending account and sends the verification email.
//
// HTTP: POST /auth/signup
// REQUEST BODY: {"username": "ada", "email": "ada@example.com", "password": "..."}
// RESPONSE: 201 {"user": {...}, "verificationEmailSent": true}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Signup(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleVerify activates the account named by an emailed link.
//
// HTTP: GET /auth/verify?token=xxx
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, apperror.ValidationFailed("token", "token is required"))
		return
	}

	user, err := h.auth.Verify(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleResend sends a new verification email.
//
// HTTP: POST /auth/verify/resend
// REQUEST BODY: {"email": "ada@example.com"}
//
// The response is the same whether or not the address has an account, so
// the endpoint cannot be used to discover who is registered.
func (h *AuthHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.ResendVerification(r.Context(), in.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageResponse{
		Message: "if the account exists and is not verified, a new link has been sent",
	})
}

// HandleLogin checks credentials and opens a session.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"email": "...", "password": "..."}
// RESPONSE: 200 user, plus the two session cookies
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.SetSession(w, res.AccessToken, res.RefreshToken)
	writeJSON(w, http.StatusOK, res.User)
}

// HandleRefresh trades the refresh cookie for a new session.
//
// HTTP: POST /auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.RefreshCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, apperror.Unauthorized("session expired, log in again"))
		return
	}

	res, err := h.auth.Refresh(r.Context(), cookie.Value)
	if err != nil {
		// A dead refresh token is useless; stop the browser sending it.
		h.cookies.ClearSession(w)
		writeError(w, err)
		return
	}

	h.cookies.SetSession(w, res.AccessToken, res.RefreshToken)
	writeJSON(w, http.StatusOK, res.User)
}

// HandleLogout clears the session cookies.
//
// HTTP: POST /auth/logout
//
// WHY POST AND NOT GET?
// Logout is a state-changing operation. A GET could be triggered by an
// image tag on another site or by a browser prefetching the URL.
//
// Tokens are stateless, so "logout" means deleting the cookies. The access
// token stays technically valid until it expires (15 min), but without the
// cookie the browser can't send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearSession(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// HandleForgotPassword emails a password reset link.
//
// HTTP: POST /auth/password/forgot
// REQUEST BODY: {"email": "ada@example.com"}
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), in.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageResponse{
		Message: "if the account exists, a reset link has been sent",
	})
}

// HandleResetPassword sets a new password from an emailed reset token.
//
// HTTP: POST /auth/password/reset
// REQUEST BODY: {"token": "...", "password": "..."}
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.ResetPassword(r.Context(), in.Token, in.Password); err != nil {
		writeError(w, err)
		return
	}

	// Any session opened with the old password is ended on this browser.
	h.cookies.ClearSession(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "password updated, log in again"})
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this browser, not a CSRF attacker.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	url, err := h.auth.GitHubAuthURL(state)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.SetState(w, state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code, upsert the user and open a session (service)
//  3. Set the session cookies
//  4. Redirect to the app home page
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(auth.StateCookie)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: invalid OAuth state")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	h.cookies.ClearState(w)

	// GitHub sends ?error=access_denied when the user clicks "Cancel".
	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	// --- Step 2: Exchange and sign in ---
	res, err := h.auth.GitHubCallback(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("user authenticated with GitHub", slog.String("userID", res.User.ID))

	// --- Steps 3 and 4 ---
	h.cookies.SetSession(w, res.AccessToken, res.RefreshToken)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
