package client

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

	"github.com/dmitrijs2005/wardrobe/internal/client/models"
	"github.com/dmitrijs2005/wardrobe/internal/common"
	"github.com/dmitrijs2005/wardrobe/internal/netx"
	"github.com/sethvargo/go-retry"
)

const (
	usersPath     = "/api/users"
	inventoryPath = "/api/inventory"
	uploadPath    = "/upload/image"

	defaultRetries = 2
)

// HTTPClient implements Client against the JSON backend API.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
	tokens  TokenSource
	backoff time.Duration
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.hc = hc }
}

// WithRetryBackoff sets the base delay between retries of idempotent reads.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *HTTPClient) { c.backoff = d }
}

func NewHTTPClient(baseURL string, tokens TokenSource, timeout time.Duration, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
		tokens:  tokens,
		backoff: 200 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

func (c *HTTPClient) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.ApplicationUser, error) {
	var out models.ApplicationUser
	if err := c.do(ctx, http.MethodPost, usersPath+"/register", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateOAuthUser(ctx context.Context, req models.CreateUserRequest) (*models.ApplicationUser, error) {
	var out models.ApplicationUser
	if err := c.do(ctx, http.MethodPost, usersPath+"/oauth-login", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

type emailRequest struct {
	Email string `json:"email"`
}

func (c *HTTPClient) GetUserByEmail(ctx context.Context, email string) (*models.ApplicationUser, error) {
	var out models.ApplicationUser
	if err := c.do(ctx, http.MethodPost, usersPath+"/getuser", emailRequest{Email: email}, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) VerifyUser(ctx context.Context, email string) (*models.ApplicationUser, error) {
	var out models.ApplicationUser
	if err := c.do(ctx, http.MethodPost, usersPath+"/verify", emailRequest{Email: email}, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListItems(ctx context.Context) ([]models.InventoryItem, error) {
	var out []models.InventoryItem
	if err := c.do(ctx, http.MethodGet, inventoryPath, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetItem(ctx context.Context, id string) (*models.InventoryItem, error) {
	var out models.InventoryItem
	if err := c.do(ctx, http.MethodGet, inventoryPath+"/"+url.PathEscape(id), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateItem(ctx context.Context, item models.InventoryItem) (*models.InventoryItem, error) {
	item.ID = ""
	var out models.InventoryItem
	if err := c.do(ctx, http.MethodPost, inventoryPath, item, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (*models.InventoryItem, error) {
	var out models.InventoryItem
	if err := c.do(ctx, http.MethodPut, inventoryPath+"/"+url.PathEscape(id), patch, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, inventoryPath+"/"+url.PathEscape(id), nil, nil, true)
}

type uploadRequest struct {
	ContentType string `json:"contentType"`
}

func (c *HTTPClient) UploadImage(ctx context.Context, data []byte, contentType string) (string, error) {
	var res models.UploadResult
	if err := c.do(ctx, http.MethodPost, uploadPath, uploadRequest{ContentType: contentType}, &res, true); err != nil {
		return "", err
	}
	if err := netx.UploadToPresignedURL(ctx, c.hc, res.UploadURL, contentType, data); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return res.ImageURL, nil
}

// do sends one JSON request. GETs are retried on transport errors and
// gateway-class responses; other methods are sent exactly once.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any, auth bool) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	if method != http.MethodGet {
		return c.send(ctx, method, path, body, out, auth)
	}

	b := retry.WithMaxRetries(defaultRetries, retry.NewExponential(c.backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := c.send(ctx, method, path, body, out, auth)
		if errors.Is(err, ErrUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *HTTPClient) send(ctx context.Context, method, path string, body []byte, out any, auth bool) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if auth && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("session token: %w", err)
		}
		if token != "" {
			req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
