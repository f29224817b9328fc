package postclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"instacap/internal/domain"
)

const defaultRequestTimeout = 60 * time.Second

// Profile is the account snapshot the backend attaches to auth and
// generation responses. Field names mirror the wire contract.
type Profile struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name,omitempty"`
	Picture        string    `json:"picture,omitempty"`
	Plan           string    `json:"plan"`
	PostsThisMonth int       `json:"postsThisMonth"`
	PostsLimit     int       `json:"postsLimit"`
	ResetDate      time.Time `json:"resetDate"`
}

// Entitlement converts the profile into the local entitlement shape.
func (p *Profile) Entitlement() domain.Entitlement {
	return domain.Entitlement{
		Plan:      domain.Plan(p.Plan),
		PostsUsed: p.PostsThisMonth,
		ResetAt:   p.ResetDate,
	}
}

// StatusError is a non-2xx backend response with its decoded error body.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: unexpected status %d", e.Status)
}

// QuotaError is the structured 403 the backend returns when the monthly
// allowance is spent.
type QuotaError struct {
	Used  int    `json:"used"`
	Limit int    `json:"limit"`
	Plan  string `json:"plan"`
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("api: quota exceeded (%d/%d on %s plan)", e.Used, e.Limit, e.Plan)
}

func (e *QuotaError) Is(target error) bool {
	return target == domain.ErrQuotaExceeded
}

// Entitlement reconstructs the server-side entitlement from the rejection.
func (e *QuotaError) Entitlement() domain.Entitlement {
	return domain.Entitlement{
		Plan:      domain.Plan(e.Plan),
		PostsUsed: e.Used,
		ResetAt:   domain.NextReset(time.Now()),
	}
}

// Client talks to the backend API. The zero value is not usable; construct
// with NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOptions tune the API client; zero values pick defaults.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("postclient: base URL required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
	}, nil
}

type authResponse struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

type userResponse struct {
	User Profile `json:"user"`
}

// ExchangeGoogleToken trades a Google ID token for a backend session token
// plus the account profile.
func (c *Client) ExchangeGoogleToken(ctx context.Context, idToken string) (string, *Profile, error) {
	var out authResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/google", "", map[string]string{"id_token": idToken}, &out)
	if err != nil {
		return "", nil, err
	}
	return out.Token, &out.User, nil
}

// VerifyToken asks the backend whether a stored session token is still
// valid, returning the fresh profile when it is.
func (c *Client) VerifyToken(ctx context.Context, token string) (*Profile, error) {
	var out userResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/verify", token, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Me fetches the current account profile.
func (c *Client) Me(ctx context.Context, token string) (*Profile, error) {
	var out userResponse
	if err := c.do(ctx, http.MethodGet, "/api/user/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

type generatePayload struct {
	ImageData string             `json:"imageData"`
	Config    domain.PostOptions `json:"config"`
}

// GenerateResult is a successful generation: the content plus the profile
// with the charged counter.
type GenerateResult struct {
	Content *domain.PostContent `json:"content"`
	User    Profile             `json:"user"`
}

// GeneratePost submits an image for metered generation.
func (c *Client) GeneratePost(ctx context.Context, token, imageData string, opts domain.PostOptions) (*GenerateResult, error) {
	var out GenerateResult
	err := c.do(ctx, http.MethodPost, "/api/generate-post", token, generatePayload{
		ImageData: imageData,
		Config:    opts,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportEvents ships a batch of analytics events; failures are the caller's
// to ignore, analytics must never block the product path.
func (c *Client) ReportEvents(ctx context.Context, token string, events []AnalyticsEvent) error {
	return c.do(ctx, http.MethodPost, "/api/analytics/batch", token, map[string]any{"events": events}, nil)
}

// AnalyticsEvent mirrors the batch ingestion wire shape.
type AnalyticsEvent struct {
	Type       string          `json:"type"`
	Success    bool            `json:"success"`
	LatencyMS  int             `json:"latencyMs"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

type wireError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Quota *QuotaError `json:"quota,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("postclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("postclient: decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var wire wireError
	_ = json.NewDecoder(resp.Body).Decode(&wire)
	if resp.StatusCode == http.StatusForbidden && wire.Quota != nil {
		return wire.Quota
	}
	return &StatusError{
		Status:  resp.StatusCode,
		Code:    wire.Error.Code,
		Message: wire.Error.Message,
	}
}
