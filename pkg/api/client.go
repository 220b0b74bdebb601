// Package api is the HTTP client for the storefront member backend: login,
// registration, OTP dispatch and the province/city reference lists.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-authflow/pkg/contract"
	"github.com/goliatone/go-authflow/pkg/options"
)

// DefaultTimeout bounds every request when no http.Client is supplied.
const DefaultTimeout = 15 * time.Second

// Credentials is the login form payload.
type Credentials struct {
	User     string
	Password string
}

// RegistrationPayload is the registration request body. Gender must already
// be mapped to its wire code (see GenderCode).
type RegistrationPayload struct {
	FullName      string `json:"fullName"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	PIN           string `json:"pin"`
	Password      string `json:"password"`
	Province      string `json:"province"`
	City          string `json:"city"`
	Gender        string `json:"gender"`
	DateOfBirth   string `json:"dateofBirth"`
	MinatKategori string `json:"minatKategori"`
}

// InterestPlaceholder fills the interest-category field the registration
// form never asks for.
const InterestPlaceholder = "-"

// GenderCode maps a gender option id to the backend's code.
func GenderCode(option string) (string, bool) {
	switch option {
	case options.GenderMale:
		return "l", true
	case options.GenderFemale:
		return "p", true
	default:
		return "", false
	}
}

// LoginResult is the decoded login response.
type LoginResult struct {
	Code     Code
	MemberID string
}

type loginResponse struct {
	ResponseCode Code `json:"responseCode"`
	LoginData    struct {
		MemberID ID `json:"memberID"`
	} `json:"loginData"`
}

type codeResponse struct {
	ResponseCode Code `json:"responseCode"`
}

type provincesResponse struct {
	ProvincesData []struct {
		ID   ID     `json:"prov_id"`
		Name string `json:"prov_name"`
	} `json:"provincesData"`
}

type citiesResponse struct {
	CitiesData []struct {
		ID         ID     `json:"city_id"`
		Name       string `json:"city_name"`
		ProvinceID ID     `json:"prov_id"`
	} `json:"citiesData"`
}

// Client talks to the storefront backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	catalog    *contract.Catalog
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithCatalog overrides the endpoint catalog.
func WithCatalog(catalog *contract.Catalog) Option {
	return func(c *Client) {
		if catalog != nil {
			c.catalog = catalog
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	u, err := url.Parse(raw)
	if err != nil || raw == "" || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBaseURL, baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.catalog == nil {
		catalog, err := contract.Default()
		if err != nil {
			return nil, err
		}
		c.catalog = catalog
	}
	return c, nil
}

var _ options.Fetcher = (*Client)(nil)

// Login posts the credentials form-encoded.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	form := url.Values{}
	form.Set("user", creds.User)
	form.Set("password", creds.Password)

	var resp loginResponse
	if err := c.do(ctx, contract.OpLogin, nil, strings.NewReader(form.Encode()), &resp); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Code: resp.ResponseCode, MemberID: string(resp.LoginData.MemberID)}, nil
}

// Register posts the registration payload as JSON.
func (c *Client) Register(ctx context.Context, payload RegistrationPayload) (Code, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &TransportError{Op: contract.OpRegister, Err: err}
	}
	var resp codeResponse
	if err := c.do(ctx, contract.OpRegister, nil, bytes.NewReader(body), &resp); err != nil {
		return "", err
	}
	return resp.ResponseCode, nil
}

// DispatchOTP asks the backend to send a one-time code to phone.
func (c *Client) DispatchOTP(ctx context.Context, phone string) (Code, error) {
	var resp codeResponse
	q := url.Values{"userAccount": {phone}}
	if err := c.do(ctx, contract.OpVerify, q, nil, &resp); err != nil {
		return "", err
	}
	return resp.ResponseCode, nil
}

// Provinces fetches the province list.
func (c *Client) Provinces(ctx context.Context) (options.List, error) {
	var resp provincesResponse
	if err := c.do(ctx, contract.OpListProvinces, nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make(options.List, 0, len(resp.ProvincesData))
	for _, p := range resp.ProvincesData {
		out = append(out, options.Option{ID: string(p.ID), Label: p.Name})
	}
	return out, nil
}

// Cities fetches the cities of provinceID.
func (c *Client) Cities(ctx context.Context, provinceID string) (options.List, error) {
	var resp citiesResponse
	q := url.Values{"provID": {provinceID}}
	if err := c.do(ctx, contract.OpListCities, q, nil, &resp); err != nil {
		return nil, err
	}
	out := make(options.List, 0, len(resp.CitiesData))
	for _, city := range resp.CitiesData {
		out = append(out, options.Option{ID: string(city.ID), Label: city.Name})
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op string, query url.Values, body io.Reader, out any) error {
	ep, err := c.catalog.Endpoint(op)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	for _, name := range ep.Required {
		if strings.TrimSpace(query.Get(name)) == "" {
			return &TransportError{Op: op, Err: fmt.Errorf("missing query parameter %q", name)}
		}
	}

	u := c.baseURL.JoinPath(ep.Path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, ep.Method, u.String(), body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil && ep.ContentType != "" {
		req.Header.Set("Content-Type", ep.ContentType)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("op", op), zap.Error(err))
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request done",
		zap.String("op", op),
		zap.String("method", ep.Method),
		zap.String("path", ep.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &TransportError{Op: op, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
