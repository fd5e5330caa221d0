package gotrue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignInWithPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.String())
		}
		if r.Header.Get("apikey") != "anon" || r.Header.Get("Authorization") != "Bearer anon" {
			t.Errorf("missing api key headers")
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@example.com" || body["password"] != "secret" {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","user":{"id":"u-1","email":"a@example.com","email_confirmed_at":"2026-02-01T00:00:00Z"}}`))
	}))
	defer srv.Close()

	session, err := NewClient(srv.URL+"/auth/v1/", "anon", nil).SignInWithPassword(context.Background(), "a@example.com", "secret")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if session.AccessToken != "tok" || session.User == nil || session.User.ID != "u-1" || session.User.EmailConfirmedAt == nil {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestSignInErrorEnvelopes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		code   string
		msg    string
	}{
		{name: "new", status: 400, body: `{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`, code: "invalid_credentials", msg: "Invalid login credentials"},
		{name: "legacy", status: 400, body: `{"error":"invalid_grant","error_description":"Email not confirmed"}`, code: "invalid_grant", msg: "Email not confirmed"},
		{name: "plain", status: 502, body: `bad gateway`, code: "", msg: "bad gateway"},
		{name: "empty", status: 503, body: ``, code: "", msg: "Service Unavailable"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		_, err := NewClient(srv.URL, "anon", nil).SignInWithPassword(context.Background(), "a@example.com", "x")
		srv.Close()

		var apiErr *Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("%s: expected *Error, got %v", tc.name, err)
		}
		if apiErr.Status != tc.status || apiErr.Code != tc.code || apiErr.Message != tc.msg {
			t.Fatalf("%s: unexpected error %+v", tc.name, apiErr)
		}
	}
}

func TestRecoverAndResend(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Path == "/resend" && body["type"] != "signup" {
			t.Errorf("expected signup resend, got %v", body)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "anon", nil)
	if err := client.ResetPasswordForEmail(context.Background(), "a@example.com", "https://portal.test/auth/callback"); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if err := client.ResendSignup(context.Background(), "a@example.com", ""); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/recover?redirect_to=https%3A%2F%2Fportal.test%2Fauth%2Fcallback" || paths[1] != "/resend?" {
		t.Fatalf("unexpected calls %v", paths)
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewClient(url, "anon", nil).ResendSignup(context.Background(), "a@example.com", "")
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status != 0 {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestTransportFailureKeepsDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewClient(srv.URL, "anon", nil).SignInWithPassword(ctx, "a@example.com", "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded in chain, got %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Err == nil || apiErr.Message != "network request failed" {
		t.Fatalf("expected wrapped transport error, got %+v", apiErr)
	}
}

func TestSignUp(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "bare user", body: `{"id":"u-9","email":"new@example.com","email_confirmed_at":null}`},
		{name: "session", body: `{"access_token":"tok","user":{"id":"u-9","email":"new@example.com"}}`},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/signup" || r.URL.Query().Get("redirect_to") != "https://portal.test/auth/callback" {
				t.Errorf("%s: unexpected request %s", tc.name, r.URL.String())
			}
			var body struct {
				Email    string            `json:"email"`
				Password string            `json:"password"`
				Data     map[string]string `json:"data"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.Email != "new@example.com" || body.Password != "longenough" || body.Data["callsign"] != "night_owl" {
				t.Errorf("%s: unexpected body %+v", tc.name, body)
			}
			_, _ = w.Write([]byte(tc.body))
		}))
		user, err := NewClient(srv.URL, "anon", nil).SignUp(context.Background(), "new@example.com", "longenough", "night_owl", "https://portal.test/auth/callback")
		srv.Close()
		if err != nil {
			t.Fatalf("%s: sign up: %v", tc.name, err)
		}
		if user.ID != "u-9" || user.EmailConfirmedAt != nil {
			t.Fatalf("%s: unexpected user %+v", tc.name, user)
		}
	}
}

func TestSignUpErrorCarriesDetailsAndHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value","details":"Key (callsign)=(night_owl) already exists.","hint":"profiles_callsign_key"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "anon", nil).SignUp(context.Background(), "new@example.com", "longenough", "night_owl", "")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Code != "23505" || apiErr.Details == "" || apiErr.Hint != "profiles_callsign_key" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestUnconfiguredClient(t *testing.T) {
	if err := NewClient("", "anon", nil).ResendSignup(context.Background(), "a@example.com", ""); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}
