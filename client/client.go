package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	scaffold "github.com/metanet-platform/scaffold-app"
)

const (
	defaultTimeout = 3 * time.Second
	userAgent      = "scaffold-client/1.0"
)

// Client talks to a scaffold node on behalf of a derived identity. It
// signs requests locally; the private key never goes over the wire.
type Client struct {
	client   *http.Client
	cache    *cache.Cache
	domain   string
	identity scaffold.Identity
	token    string
}

func New(domain string, identity scaffold.Identity) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:   &httpClient,
		cache:    cache.New(10*time.Minute, 15*time.Minute),
		domain:   domain,
		identity: identity,
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

// Token returns the session token obtained by the last successful
// auth call, or empty when none was issued yet.
func (c *Client) Token() string {
	return c.token
}

func (c *Client) GetWellKnown(ctx context.Context) (scaffold.WellKnownScaffold, error) {
	cacheKey := "wellknown:" + c.domain
	if x, found := c.cache.Get(cacheKey); found {
		return x.(scaffold.WellKnownScaffold), nil
	}

	var wks scaffold.WellKnownScaffold
	if err := c.get(ctx, "/.well-known/scaffold", &wks); err != nil {
		return scaffold.WellKnownScaffold{}, fmt.Errorf("failed to get well-known scaffold: %v", err)
	}

	c.cache.Set(cacheKey, wks, cache.DefaultExpiration)
	return wks, nil
}

// Profile carries the optional profile fields of registration flows.
type Profile struct {
	Username          string
	DisplayName       string
	AvatarURL         string
	ExternalPrincipal string
}

// Register performs the strict registration flow.
func (c *Client) Register(ctx context.Context, platformAddress string, profile Profile) (scaffold.AuthResponse, error) {
	req := scaffold.RegisterRequest{
		PlatformAddress:   platformAddress,
		ExternalPrincipal: profile.ExternalPrincipal,
		Username:          profile.Username,
		DisplayName:       profile.DisplayName,
		AvatarURL:         profile.AvatarURL,
	}
	if err := scaffold.SignRequest(&req, c.identity); err != nil {
		return scaffold.AuthResponse{}, fmt.Errorf("failed to sign request: %v", err)
	}
	return c.auth(ctx, "/api/v1/register", &req)
}

// Authenticate performs the strict auth-only flow.
func (c *Client) Authenticate(ctx context.Context, platformAddress string) (scaffold.AuthResponse, error) {
	req := scaffold.AuthenticateRequest{
		PlatformAddress: platformAddress,
	}
	if err := scaffold.SignRequest(&req, c.identity); err != nil {
		return scaffold.AuthResponse{}, fmt.Errorf("failed to sign request: %v", err)
	}
	return c.auth(ctx, "/api/v1/authenticate", &req)
}

// Session performs the combined auth-or-register flow.
func (c *Client) Session(ctx context.Context, profile Profile) (scaffold.AuthResponse, error) {
	req := scaffold.AuthOrRegisterRequest{
		Username:          profile.Username,
		DisplayName:       profile.DisplayName,
		AvatarURL:         profile.AvatarURL,
		ExternalPrincipal: profile.ExternalPrincipal,
	}
	if err := scaffold.SignRequest(&req, c.identity); err != nil {
		return scaffold.AuthResponse{}, fmt.Errorf("failed to sign request: %v", err)
	}
	return c.auth(ctx, "/api/v1/session", &req)
}

// SelfGrant requests a signed self-service role grant, including the
// first-admin bootstrap.
func (c *Client) SelfGrant(ctx context.Context, roleName string) (scaffold.AuthResponse, error) {
	req := scaffold.SelfGrantRequest{
		RoleName: roleName,
	}
	if err := scaffold.SignRequest(&req, c.identity); err != nil {
		return scaffold.AuthResponse{}, fmt.Errorf("failed to sign request: %v", err)
	}

	var resp scaffold.AuthResponse
	if err := c.post(ctx, "/api/v1/roles/self", &req, &resp); err != nil {
		return scaffold.AuthResponse{}, err
	}
	return resp, nil
}

// Grant issues an admin-to-target grant using the session token from
// the last auth call.
func (c *Client) Grant(ctx context.Context, target, roleName string, permissions []string, expiresAt *time.Time) (scaffold.AuthResponse, error) {
	if c.token == "" {
		return scaffold.AuthResponse{}, fmt.Errorf("no session token, authenticate first")
	}

	req := scaffold.AdminGrantRequest{
		AdminPrincipal:  c.identity.PublicKey,
		TargetPrincipal: target,
		NewRole:         roleName,
		Permissions:     permissions,
		ExpiresAt:       expiresAt,
	}

	var resp scaffold.AuthResponse
	if err := c.post(ctx, "/api/v1/roles/grant", &req, &resp); err != nil {
		return scaffold.AuthResponse{}, err
	}
	return resp, nil
}

func (c *Client) GetUser(ctx context.Context, signingKey string) (scaffold.User, error) {
	cacheKey := "user:" + signingKey
	if x, found := c.cache.Get(cacheKey); found {
		return x.(scaffold.User), nil
	}

	var user scaffold.User
	if err := c.get(ctx, "/api/v1/users/"+signingKey, &user); err != nil {
		return scaffold.User{}, err
	}

	c.cache.Set(cacheKey, user, cache.DefaultExpiration)
	return user, nil
}

func (c *Client) auth(ctx context.Context, path string, body any) (scaffold.AuthResponse, error) {
	var resp scaffold.AuthResponse
	if err := c.post(ctx, path, body, &resp); err != nil {
		return scaffold.AuthResponse{}, err
	}
	if resp.Token != "" {
		c.token = resp.Token
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, response any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://"+c.domain+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	// auth endpoints return the same envelope on failure; the caller
	// inspects success and code
	err = json.NewDecoder(resp.Body).Decode(&response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	return nil
}

func (c *Client) get(ctx context.Context, path string, response any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", "https://"+c.domain+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(&response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	return nil
}
