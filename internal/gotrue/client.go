// Package gotrue is a small client for the hosted auth REST API used by the portal.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// defaultTimeout bounds each call to the auth provider.
const defaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Error is a failure reported by the auth provider or the transport.
type Error struct {
	Status  int    // HTTP status, 0 for transport failures.
	Code    string // Provider error code, e.g. invalid_credentials.
	Message string // Provider message.
	Details string // Database details forwarded by the provider, if any.
	Hint    string // Database hint forwarded by the provider, if any.
	Err     error  // Transport cause, nil for provider replies.
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("gotrue: %s: %v", e.Message, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("gotrue: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("gotrue: %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// User is the subset of the provider user object the portal reads.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
}

// Session is the result of a password sign-in.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         *User  `json:"user"`
}

// Client calls the provider with the public anon key.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewClient constructs a Client. A nil httpClient uses a client with a default timeout.
func NewClient(baseURL, anonKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		anonKey:    strings.TrimSpace(anonKey),
		httpClient: httpClient,
	}
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	var session Session
	if errDo := c.do(ctx, "/token", url.Values{"grant_type": {"password"}}, body, &session); errDo != nil {
		return nil, errDo
	}
	return &session, nil
}

// SignUp registers a candidate. The callsign is stored in user metadata and
// redirectTo is where the confirmation link lands.
func (c *Client) SignUp(ctx context.Context, email, password, callsign, redirectTo string) (*User, error) {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"callsign": callsign},
	}
	var raw json.RawMessage
	if errDo := c.do(ctx, "/signup", query, body, &raw); errDo != nil {
		return nil, errDo
	}
	// Autoconfirming servers reply with a session, the rest with the bare user.
	userJSON := gjson.GetBytes(raw, "user")
	if !userJSON.IsObject() {
		userJSON = gjson.ParseBytes(raw)
	}
	var user User
	if errDecode := json.Unmarshal([]byte(userJSON.Raw), &user); errDecode != nil {
		return nil, fmt.Errorf("gotrue: decode signup response: %w", errDecode)
	}
	return &user, nil
}

// ResetPasswordForEmail asks the provider to send recovery instructions.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	return c.do(ctx, "/recover", query, map[string]string{"email": email}, nil)
}

// ResendSignup asks the provider to resend the signup verification email.
func (c *Client) ResendSignup(ctx context.Context, email, redirectTo string) error {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	return c.do(ctx, "/resend", query, map[string]string{"type": "signup", "email": email}, nil)
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.doWithToken(ctx, "/logout", nil, struct{}{}, nil, accessToken)
}

func (c *Client) do(ctx context.Context, path string, query url.Values, in, out any) error {
	return c.doWithToken(ctx, path, query, in, out, c.anonKey)
}

func (c *Client) doWithToken(ctx context.Context, path string, query url.Values, in, out any, bearer string) error {
	if c == nil || c.baseURL == "" {
		return errors.New("gotrue: client not configured")
	}
	payload, errMarshal := json.Marshal(in)
	if errMarshal != nil {
		return fmt.Errorf("gotrue: encode request: %w", errMarshal)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if errReq != nil {
		return fmt.Errorf("gotrue: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return &Error{Message: "network request failed", Err: errDo}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return parseError(resp.StatusCode, data)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if errDecode := json.NewDecoder(resp.Body).Decode(out); errDecode != nil {
		return fmt.Errorf("gotrue: decode response: %w", errDecode)
	}
	return nil
}

// parseError reads the provider's error envelope. Older servers return
// error/error_description, newer ones error_code/msg.
func parseError(status int, body []byte) *Error {
	out := &Error{Status: status}
	if !gjson.ValidBytes(body) {
		out.Message = strings.TrimSpace(string(body))
		if out.Message == "" {
			out.Message = http.StatusText(status)
		}
		return out
	}
	parsed := gjson.ParseBytes(body)
	for _, key := range []string{"error_code", "error", "code"} {
		if v := parsed.Get(key); v.Type == gjson.String && v.String() != "" {
			out.Code = v.String()
			break
		}
	}
	for _, key := range []string{"msg", "message", "error_description"} {
		if v := parsed.Get(key).String(); v != "" {
			out.Message = v
			break
		}
	}
	out.Details = parsed.Get("details").String()
	out.Hint = parsed.Get("hint").String()
	if out.Message == "" {
		out.Message = http.StatusText(status)
	}
	return out
}
