package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/auth"
	"github.com/sakif/postvault/internal/mailer"
	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/repository"
)

// Mailer sends one HTML email. *mailer.SMTP and *mailer.Log implement it.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// OAuthProvider is the GitHub side of the OAuth flow (*auth.GitHubProvider).
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// githubUsernameAttempts bounds how many suffixed usernames a first GitHub
// login tries when the GitHub login is already taken locally.
const githubUsernameAttempts = 5

// SignupInput is the body of POST /auth/signup.
type SignupInput struct {
	Username string `json:"username" validate:"required,min=3,max=30,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type passwordInput struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// AuthService handles accounts and sessions.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ TokenService (JWT), PasswordService (bcrypt)
//	                                 ↘ Mailer (verification, reset), OAuthProvider (GitHub)
//
// SESSIONS:
// A session is a pair of JWTs: a short-lived access token (15 min) sent on
// every request, and a refresh token (7 days) that is only sent to /auth and
// traded for a new pair. The handler stores both in HttpOnly cookies.
//
// EMAIL LINKS:
// Verification and reset links carry purpose-scoped JWTs, so no token table
// is needed. A reset token is bound to a fingerprint of the password hash it
// was issued against: once the password changes, the link is dead.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	mail      Mailer
	github    OAuthProvider // nil when GitHub login is not configured
	baseURL   string
	logger    *slog.Logger
}

// NewAuthService creates an AuthService. github may be nil.
// baseURL is the public origin used in emailed links, without a trailing slash.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	mail Mailer,
	github OAuthProvider,
	baseURL string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		mail:      mail,
		github:    github,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
	}
}

// AuthResult bundles the user with a freshly issued session so the handler
// can set both cookies and respond in one step.
type AuthResult struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

// SignupResult reports whether the verification email went out. Signup
// succeeds even when it did not; the user can ask for it again.
type SignupResult struct {
	User                  *model.User `json:"user"`
	VerificationEmailSent bool        `json:"verificationEmailSent"`
}

// Signup creates a pending credentials account and emails a verification link.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if err := checkInput(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		AuthType:     model.AuthCredentials,
		Status:       model.UserPending,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create user", slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID))

	sent := true
	if err := s.sendVerification(ctx, user); err != nil {
		sent = false
		s.logger.Warn("verification email not sent",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return &SignupResult{User: user, VerificationEmailSent: sent}, nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *model.User) error {
	token, err := s.tokens.Issue(user.ID, auth.PurposeVerify, "", auth.VerifyTTL)
	if err != nil {
		return err
	}
	email, err := mailer.VerificationEmail(user.Username, s.link("/auth/verify", token))
	if err != nil {
		return err
	}
	return s.mail.Send(ctx, user.Email, email.Subject, email.HTML)
}

func (s *AuthService) link(path, token string) string {
	return s.baseURL + path + "?token=" + url.QueryEscape(token)
}

// Verify activates the account a verification token was issued for.
// Verifying an already active account succeeds and changes nothing.
func (s *AuthService) Verify(ctx context.Context, token string) (*model.User, error) {
	userID, _, err := s.tokens.Parse(token, auth.PurposeVerify)
	if err != nil {
		return nil, apperror.ValidationFailed("token", "verification link is invalid or has expired")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Status == model.UserActive {
		return user, nil
	}

	user.Status = model.UserActive
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("activating user %s: %w", user.ID, err)
	}

	s.logger.Info("email verified", slog.String("userID", user.ID))
	return user, nil
}

// ResendVerification emails a new link to a pending account. Unknown and
// already active addresses succeed silently so the endpoint cannot be used
// to probe which emails have accounts.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	if user.Status != model.UserPending {
		return nil
	}

	if err := s.sendVerification(ctx, user); err != nil {
		s.logger.Error("verification email failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return apperror.Upstream("mail service", err)
	}
	return nil
}

// Login checks email and password and opens a session.
//
// Unknown emails still pay for one bcrypt comparison (VerifyDummy) so the
// response time does not tell an attacker whether the address exists. The
// pending-account check runs only after the password matched, for the same
// reason.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	invalid := apperror.Unauthorized("invalid email or password")

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperror.ErrNotFound) {
		s.passwords.VerifyDummy(password)
		return nil, invalid
	}
	if err != nil {
		s.logger.Error("failed to look up user", slog.String("error", err.Error()))
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	// GitHub-only accounts have no password to compare against.
	if user.PasswordHash == "" {
		s.passwords.VerifyDummy(password)
		return nil, invalid
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, invalid
		}
		return nil, fmt.Errorf("verifying password: %w", err)
	}

	if user.Status != model.UserActive {
		return nil, apperror.Forbidden("verify your email address before logging in")
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.openSession(user)
}

// Refresh trades a refresh token for a new access/refresh pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	expired := apperror.Unauthorized("session expired, log in again")

	userID, _, err := s.tokens.Parse(refreshToken, auth.PurposeRefresh)
	if err != nil {
		return nil, expired
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, expired
	}
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", userID, err)
	}
	if user.Status != model.UserActive {
		return nil, expired
	}

	return s.openSession(user)
}

func (s *AuthService) openSession(user *model.User) (*AuthResult, error) {
	access, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing access token: %w", err)
	}
	refresh, err := s.tokens.Issue(user.ID, auth.PurposeRefresh, "", auth.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issuing refresh token: %w", err)
	}
	return &AuthResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// ForgotPassword emails a reset link to a credentials account. Like
// ResendVerification it succeeds silently for addresses without one.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	if user.PasswordHash == "" {
		return nil
	}

	token, err := s.tokens.Issue(user.ID, auth.PurposeReset, auth.Fingerprint(user.PasswordHash), auth.ResetTTL)
	if err != nil {
		return fmt.Errorf("issuing reset token: %w", err)
	}
	msg, err := mailer.ResetEmail(user.Username, s.link("/reset-password", token))
	if err != nil {
		return fmt.Errorf("rendering reset email: %w", err)
	}
	if err := s.mail.Send(ctx, user.Email, msg.Subject, msg.HTML); err != nil {
		s.logger.Error("reset email failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return apperror.Upstream("mail service", err)
	}

	s.logger.Info("password reset requested", slog.String("userID", user.ID))
	return nil
}

// ResetPassword sets a new password using a reset token.
//
// The link arrived by email, which proves ownership of the address, so a
// still pending account is activated too.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	invalid := apperror.ValidationFailed("token", "reset link is invalid or has expired")

	userID, binding, err := s.tokens.Parse(token, auth.PurposeReset)
	if err != nil {
		return invalid
	}
	if err := checkInput(passwordInput{Password: newPassword}); err != nil {
		return err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return fmt.Errorf("loading user %s: %w", userID, err)
	}
	if user.PasswordHash == "" || auth.Fingerprint(user.PasswordHash) != binding {
		return invalid
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	user.PasswordHash = hash
	user.Status = model.UserActive
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("saving new password: %w", err)
	}

	s.logger.Info("password reset", slog.String("userID", user.ID))
	return nil
}

// GitHubAuthURL returns the GitHub consent page URL for state.
func (s *AuthService) GitHubAuthURL(state string) (string, error) {
	if s.github == nil {
		return "", apperror.NotFound("login provider", "github")
	}
	return s.github.AuthURL(state), nil
}

// GitHubCallback finishes the OAuth flow: it exchanges the code, signs the
// GitHub user in (creating or linking the account) and opens a session.
func (s *AuthService) GitHubCallback(ctx context.Context, code string) (*AuthResult, error) {
	if s.github == nil {
		return nil, apperror.NotFound("login provider", "github")
	}

	gh, err := s.github.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("GitHub exchange failed", slog.String("error", err.Error()))
		return nil, apperror.Unauthorized("GitHub login failed")
	}

	return s.LoginOrRegisterGitHub(ctx, gh)
}

// LoginOrRegisterGitHub upserts the user for a GitHub profile and opens a
// session.
//
// The GitHub login becomes the initial username. If a local account already
// holds it, the upsert is retried with "-2", "-3", ... appended.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("GitHub user must not be nil")
	}

	base := githubUsername(gh.Login)
	candidate := base

	for attempt := 1; ; attempt++ {
		user := &model.User{
			Username: candidate,
			Email:    normalizeEmail(gh.Email),
			Img:      gh.AvatarURL,
			GitHubID: &gh.ID,
		}

		err := s.users.UpsertGitHubUser(ctx, user)
		if err == nil {
			s.logger.Info("user authenticated via GitHub",
				slog.String("userID", user.ID),
				slog.Int64("githubID", gh.ID),
			)
			return s.openSession(user)
		}

		var appErr *apperror.AppError
		usernameTaken := errors.As(err, &appErr) && errors.Is(err, apperror.ErrConflict) && appErr.Field == "username"
		if !usernameTaken {
			return nil, fmt.Errorf("upserting GitHub user %d: %w", gh.ID, err)
		}
		if attempt == githubUsernameAttempts {
			return nil, err
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt+1)
	}
}

// githubUsername fits a GitHub login into the local username rules, leaving
// room for a "-N" suffix.
func githubUsername(login string) string {
	name := strings.Map(func(r rune) rune {
		if r < 128 && usernamePattern.MatchString(string(r)) {
			return r
		}
		return -1
	}, login)

	if limit := MaxUsernameLength - 3; len(name) > limit {
		name = name[:limit]
	}
	for len(name) < MinUsernameLength {
		name += "_"
	}
	return name
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
