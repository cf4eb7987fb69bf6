// Package api implements the typed HTTP client for the ReceiptVault backend.
// Every method is a single authenticated round trip: no retries and no
// caching happen at this layer, and errors are always propagated to the
// caller, which decides blocking versus non-blocking treatment.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"receiptvault/internal/models"
)

// Client issues requests against a ReceiptVault backend base URL.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New creates a client for the given base URL. A nil httpc falls back to
// http.DefaultClient; tests and callers that want timeouts inject their own.
func New(baseURL string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpc: httpc}
}

// RegisterRequest is the payload for account registration.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// LoginResult carries the bearer token and the user returned by login.
type LoginResult struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user,omitempty"`
}

// ReceiptCreate is the payload for creating a receipt record from an
// already-uploaded image URL.
type ReceiptCreate struct {
	ImageURL   string     `json:"image_url"`
	Vendor     string     `json:"vendor,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	Category   string     `json:"category,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	IsBusiness int        `json:"is_business"`
}

// ReceiptUpdate is a partial update: only non-nil fields are sent.
type ReceiptUpdate struct {
	Vendor      *string    `json:"vendor,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	TotalAmount *float64   `json:"total_amount,omitempty"`
	TaxAmount   *float64   `json:"tax_amount,omitempty"`
	Items       *string    `json:"items,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	IsBusiness  *int       `json:"is_business,omitempty"`
}

// SyncResult is the payload of a subscription sync. The shape is opaque to
// this layer beyond the fact that the call succeeded.
type SyncResult struct {
	Plan   string `json:"plan,omitempty"`
	Status string `json:"status,omitempty"`
}

// CheckoutSession holds the payment processor URL to redirect the user to.
type CheckoutSession struct {
	URL string `json:"url"`
}

// Register creates a new account. This is the one unauthenticated call.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	var user models.User
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/register", "", nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges email and password for a bearer token. The backend speaks
// the OAuth2 password form on this endpoint, so the body is form-encoded
// with the email in the "username" field. This is a protocol contract, not
// a style choice.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var result LoginResult
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", "", nil,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CurrentUser fetches the authenticated user's profile.
func (c *Client) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/users/me", token, nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListReceipts returns the user's receipts, newest first. A non-positive
// limit uses the backend default.
func (c *Client) ListReceipts(ctx context.Context, token string, skip, limit int) ([]models.Receipt, error) {
	query := url.Values{}
	if skip > 0 {
		query.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var receipts []models.Receipt
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/receipts", token, query, nil, &receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

// GetReceipt fetches a single receipt by ID.
func (c *Client) GetReceipt(ctx context.Context, token string, id int64) (*models.Receipt, error) {
	var receipt models.Receipt
	path := fmt.Sprintf("/api/v1/receipts/%d", id)
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, nil, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// CreateReceipt creates a receipt record for an already-stored image.
func (c *Client) CreateReceipt(ctx context.Context, token string, req ReceiptCreate) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/receipts", token, nil, req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// UpdateReceipt applies a partial update to a receipt.
func (c *Client) UpdateReceipt(ctx context.Context, token string, id int64, req ReceiptUpdate) (*models.Receipt, error) {
	var receipt models.Receipt
	path := fmt.Sprintf("/api/v1/receipts/%d", id)
	if err := c.doJSON(ctx, http.MethodPut, path, token, nil, req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// DeleteReceipt soft-deletes a receipt.
func (c *Client) DeleteReceipt(ctx context.Context, token string, id int64) error {
	path := fmt.Sprintf("/api/v1/receipts/%d", id)
	return c.doJSON(ctx, http.MethodDelete, path, token, nil, nil, nil)
}

// ApproveReceipt marks a receipt's extracted fields as reviewed.
func (c *Client) ApproveReceipt(ctx context.Context, token string, id int64) (*models.Receipt, error) {
	var receipt models.Receipt
	path := fmt.Sprintf("/api/v1/receipts/%d/approve", id)
	if err := c.doJSON(ctx, http.MethodPost, path, token, nil, nil, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// RestoreReceipt undoes a soft delete.
func (c *Client) RestoreReceipt(ctx context.Context, token string, id int64) (*models.Receipt, error) {
	var receipt models.Receipt
	path := fmt.Sprintf("/api/v1/receipts/%d/restore", id)
	if err := c.doJSON(ctx, http.MethodPost, path, token, nil, nil, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ListDeletedReceipts returns soft-deleted receipts available for restore.
func (c *Client) ListDeletedReceipts(ctx context.Context, token string) ([]models.Receipt, error) {
	var receipts []models.Receipt
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/receipts/deleted/list", token, nil, nil, &receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

// UploadReceipt uploads an image as multipart form data and returns the
// receipt the backend created for it. If progress is non-nil and size is
// known, it receives percentages in [0,100], monotonically non-decreasing.
func (c *Client) UploadReceipt(ctx context.Context, token, filename string, r io.Reader, size int64, progress func(pct int)) (*models.Receipt, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}

	src := r
	if progress != nil && size > 0 {
		src = &progressReader{r: r, total: size, fn: progress}
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, fmt.Errorf("read upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	var receipt models.Receipt
	err = c.do(ctx, http.MethodPost, "/api/v1/receipts/upload", token, nil,
		&buf, mw.FormDataContentType(), &receipt)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Analytics fetches the expense summary. Nil bounds mean all time; present
// bounds are sent as start_date/end_date query parameters (YYYY-MM-DD).
func (c *Client) Analytics(ctx context.Context, token string, start, end *time.Time) (*models.AnalyticsSummary, error) {
	query := url.Values{}
	if start != nil {
		query.Set("start_date", start.Format("2006-01-02"))
	}
	if end != nil {
		query.Set("end_date", end.Format("2006-01-02"))
	}

	var summary models.AnalyticsSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/receipts/analytics", token, query, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// SubscriptionStatus fetches the backend's current view of the subscription.
func (c *Client) SubscriptionStatus(ctx context.Context, token string) (*models.SubscriptionStatus, error) {
	var status models.SubscriptionStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/stripe/subscription-status", token, nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CreateCheckoutSession asks the backend for a payment checkout URL for the
// given plan identifier.
func (c *Client) CreateCheckoutSession(ctx context.Context, token, plan string) (*CheckoutSession, error) {
	req := struct {
		Plan string `json:"plan"`
	}{Plan: plan}

	var session CheckoutSession
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/stripe/create-checkout-session", token, nil, req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SyncSubscription asks the backend to re-fetch authoritative subscription
// state from the payment processor and persist it.
func (c *Client) SyncSubscription(ctx context.Context, token string) (*SyncResult, error) {
	var result SyncResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/stripe/sync-subscription", token, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// doJSON marshals in (when non-nil) as a JSON body and delegates to do.
func (c *Client) doJSON(ctx context.Context, method, path, token string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, token, query, body, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, body io.Reader, contentType string, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError maps an HTTP error response to the client error taxonomy.
// The backend reports failures as {"detail": ...}.
func statusError(resp *http.Response) error {
	detail := ""
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			detail = s
		} else {
			detail = fmt.Sprintf("%v", payload.Detail)
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{Detail: detail}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Detail: detail}
	case resp.StatusCode < 500:
		return &ValidationError{StatusCode: resp.StatusCode, Detail: detail}
	default:
		if detail != "" {
			return fmt.Errorf("server error (status %d): %s", resp.StatusCode, detail)
		}
		return fmt.Errorf("server error (status %d)", resp.StatusCode)
	}
}

// progressReader reports cumulative read percentage. It only emits a value
// when the percentage increases, so callbacks are non-decreasing.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	last  int
	fn    func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)

	pct := int(p.read * 100 / p.total)
	if pct > 100 {
		pct = 100
	}
	if pct > p.last {
		p.last = pct
		p.fn(pct)
	}
	return n, err
}
