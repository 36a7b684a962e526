package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/adstudio/backend/internal/auth"
	"github.com/adstudio/backend/internal/models"
)

func TestSignUpCreatesTrialAccount(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{"email": " New@Example.com ", "password": "supersafe"})
	expectStatus(t, rec, http.StatusCreated)

	var resp struct {
		Tokens  models.SessionTokens `json:"tokens"`
		Account map[string]any       `json:"account"`
	}
	decodeBody(t, rec, &resp)
	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Tokens)
	}
	if resp.Account["tier"] != "trial" || resp.Account["downloadsRemaining"] != float64(3) {
		t.Fatalf("unexpected account view %v", resp.Account)
	}
	if resp.Account["email"] != "new@example.com" {
		t.Fatalf("expected normalized email got %v", resp.Account["email"])
	}

	stored, err := env.accounts.FindByEmail(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("expected account to be stored: %v", err)
	}
	if stored.Tier != models.TierTrial || stored.DownloadsRemaining != 3 {
		t.Fatalf("unexpected stored account %+v", stored)
	}
	if stored.TrialEndsAt == nil || !stored.TrialEndsAt.Equal(testNow.Add(72*time.Hour)) {
		t.Fatalf("unexpected trial end %v", stored.TrialEndsAt)
	}
	if auth.CheckPassword(stored.Password, "supersafe") != nil {
		t.Fatal("stored password is not a hash of the submitted password")
	}

	rec = env.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{"email": "new@example.com", "password": "supersafe"})
	expectStatus(t, rec, http.StatusConflict)
}

func TestSignUpValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]any{
		"short password": map[string]string{"email": "a@example.com", "password": "short"},
		"bad email":      map[string]string{"email": "not-an-email", "password": "supersafe"},
		"missing fields": map[string]string{"email": ""},
		"unknown field":  map[string]string{"email": "a@example.com", "password": "supersafe", "tier": "premium"},
		"long password":  map[string]string{"email": "a@example.com", "password": strings.Repeat("a", 80)},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/v1/auth/signup", "", body)
			expectStatus(t, rec, http.StatusBadRequest)
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{"email": "user@example.com", "password": "supersafe"}), http.StatusCreated)

	rec := env.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "USER@example.com", "password": "supersafe"})
	expectStatus(t, rec, http.StatusOK)

	var resp authResponse
	decodeBody(t, rec, &resp)
	if _, err := env.manager.Verify(resp.Tokens.AccessToken); err != nil {
		t.Fatalf("issued access token does not verify: %v", err)
	}

	for name, body := range map[string]map[string]string{
		"wrong password": {"email": "user@example.com", "password": "incorrect"},
		"unknown email":  {"email": "ghost@example.com", "password": "supersafe"},
	} {
		t.Run(name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/v1/auth/login", "", body)
			expectStatus(t, rec, http.StatusUnauthorized)
			var errResp map[string]string
			decodeBody(t, rec, &errResp)
			if errResp["error"] != "invalid credentials" {
				t.Fatalf("unexpected error message %q", errResp["error"])
			}
		})
	}
}

func TestLoginStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.accounts.err = errBoom

	rec := env.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "user@example.com", "password": "supersafe"})
	expectStatus(t, rec, http.StatusInternalServerError)
}

func TestRefreshAndLogout(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{"email": "user@example.com", "password": "supersafe"})
	expectStatus(t, rec, http.StatusCreated)
	var signup authResponse
	decodeBody(t, rec, &signup)

	rec = env.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": signup.Tokens.RefreshToken})
	expectStatus(t, rec, http.StatusOK)
	var refreshed authResponse
	decodeBody(t, rec, &refreshed)
	if refreshed.Tokens.RefreshToken == signup.Tokens.RefreshToken {
		t.Fatal("expected refresh token rotation")
	}

	rec = env.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": signup.Tokens.RefreshToken})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = env.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{})
	expectStatus(t, rec, http.StatusBadRequest)

	access := refreshed.Tokens.AccessToken
	expectStatus(t, env.do(http.MethodGet, "/api/v1/account", access, nil), http.StatusOK)

	rec = env.do(http.MethodPost, "/api/v1/auth/logout", access, map[string]string{"refreshToken": refreshed.Tokens.RefreshToken})
	expectStatus(t, rec, http.StatusNoContent)

	expectStatus(t, env.do(http.MethodGet, "/api/v1/account", access, nil), http.StatusUnauthorized)
	expectStatus(t, env.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": refreshed.Tokens.RefreshToken}), http.StatusUnauthorized)
}

func TestLogoutWithoutBody(t *testing.T) {
	env := newTestEnv(t)
	token := env.addAccount("acct-1", models.TierBasic, 5, nil)

	expectStatus(t, env.do(http.MethodPost, "/api/v1/auth/logout", token, nil), http.StatusNoContent)
	expectStatus(t, env.do(http.MethodGet, "/api/v1/account", token, nil), http.StatusUnauthorized)
}

func TestAccountView(t *testing.T) {
	env := newTestEnv(t)
	ends := testNow.Add(-time.Hour)
	token := env.addAccount("acct-1", models.TierTrial, 2, &ends)

	rec := env.do(http.MethodGet, "/api/v1/account", token, nil)
	expectStatus(t, rec, http.StatusOK)

	var view map[string]any
	decodeBody(t, rec, &view)
	display, _ := view["display"].(map[string]any)
	if view["id"] != "acct-1" || display["label"] != "Trial" || display["badge"] != "gray" {
		t.Fatalf("unexpected account view %v", view)
	}
	if view["trialExpired"] != true {
		t.Fatalf("expected expired trial to be reported, got %v", view)
	}
}

func TestAuthRateLimit(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { d.AuthLimiter = denyAllLimiter{} })

	rec := env.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "user@example.com", "password": "supersafe"})
	expectStatus(t, rec, http.StatusTooManyRequests)
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }
