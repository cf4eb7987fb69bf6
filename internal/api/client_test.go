package api

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"receiptvault/internal/backendtest"
	"receiptvault/internal/models"
)

// ClientTestSuite runs the client against the in-memory fixture backend
// over real HTTP round trips.
type ClientTestSuite struct {
	suite.Suite
	backend *backendtest.Server
	server  *httptest.Server
	client  *Client
}

func (suite *ClientTestSuite) SetupTest() {
	suite.backend = backendtest.New()
	suite.server = httptest.NewServer(suite.backend.Handler())
	suite.client = New(suite.server.URL, nil)
}

func (suite *ClientTestSuite) TearDownTest() {
	suite.server.Close()
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func (suite *ClientTestSuite) TestLoginFormRoundTrip() {
	suite.backend.AddUser("a@b.com", "x", "Test User")

	result, err := suite.client.Login(context.Background(), "a@b.com", "x")
	require.NoError(suite.T(), err)
	assert.NotEmpty(suite.T(), result.AccessToken)
	assert.Equal(suite.T(), "bearer", result.TokenType)

	user, err := suite.client.CurrentUser(context.Background(), result.AccessToken)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "a@b.com", user.Email)
	assert.Contains(suite.T(), user.UniqueReceiptEmail, "@receipts.receiptvault.app")
}

func (suite *ClientTestSuite) TestLoginWrongPassword() {
	suite.backend.AddUser("a@b.com", "correct-password", "")

	_, err := suite.client.Login(context.Background(), "a@b.com", "wrong")
	var authErr *AuthError
	require.ErrorAs(suite.T(), err, &authErr)
}

func (suite *ClientTestSuite) TestRegister() {
	user, err := suite.client.Register(context.Background(), RegisterRequest{
		Email:    "sarah@example.com",
		Password: "mySecurePass123",
		FullName: "Sarah Johnson",
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "sarah@example.com", user.Email)
	assert.Equal(suite.T(), "free", user.SubscriptionPlan)
	assert.True(suite.T(), strings.HasPrefix(user.UniqueReceiptEmail, "sarah-"))

	// Duplicate registration is a validation failure, not an auth one.
	_, err = suite.client.Register(context.Background(), RegisterRequest{
		Email:    "sarah@example.com",
		Password: "mySecurePass123",
	})
	var valErr *ValidationError
	require.ErrorAs(suite.T(), err, &valErr)
	assert.Contains(suite.T(), valErr.Detail, "already registered")
}

func (suite *ClientTestSuite) TestReceiptLifecycle() {
	owner := suite.backend.AddUser("owner@example.com", "hunter2hunter2", "")
	token := suite.backend.TokenFor(owner.ID)
	ctx := context.Background()

	created, err := suite.client.CreateReceipt(ctx, token, ReceiptCreate{
		ImageURL:   "https://storage.receiptvault.test/seed.jpg",
		Vendor:     "Starbucks",
		Date:       date(2025, time.January, 15),
		IsBusiness: 1,
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.StatusPending, created.Status)

	amount := 9.23
	updated, err := suite.client.UpdateReceipt(ctx, token, created.ID, ReceiptUpdate{
		TotalAmount: &amount,
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 9.23, updated.TotalAmount)
	assert.Equal(suite.T(), "Starbucks", updated.Vendor, "partial update must not clear other fields")

	approved, err := suite.client.ApproveReceipt(ctx, token, created.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.StatusCompleted, approved.Status)

	// Approving twice is rejected: the receipt is no longer pending.
	_, err = suite.client.ApproveReceipt(ctx, token, created.ID)
	var valErr *ValidationError
	require.ErrorAs(suite.T(), err, &valErr)

	require.NoError(suite.T(), suite.client.DeleteReceipt(ctx, token, created.ID))

	_, err = suite.client.GetReceipt(ctx, token, created.ID)
	var notFound *NotFoundError
	require.ErrorAs(suite.T(), err, &notFound)

	deleted, err := suite.client.ListDeletedReceipts(ctx, token)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), deleted, 1)

	restored, err := suite.client.RestoreReceipt(ctx, token, created.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), created.ID, restored.ID)

	receipts, err := suite.client.ListReceipts(ctx, token, 0, 0)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), receipts, 1)
}

func (suite *ClientTestSuite) TestListReceiptsPagination() {
	owner := suite.backend.AddUser("owner@example.com", "hunter2hunter2", "")
	token := suite.backend.TokenFor(owner.ID)

	base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		suite.backend.AddReceipt(owner.ID, models.Receipt{
			ImageURL:  "https://storage.receiptvault.test/x.jpg",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	page, err := suite.client.ListReceipts(context.Background(), token, 1, 2)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), page, 2)
	// Newest first; skipping one lands on the second newest.
	assert.True(suite.T(), page[0].CreatedAt.After(page[1].CreatedAt))
}

func (suite *ClientTestSuite) TestUploadProgress() {
	owner := suite.backend.AddUser("owner@example.com", "hunter2hunter2", "")
	token := suite.backend.TokenFor(owner.ID)

	content := bytes.Repeat([]byte("receipt-bytes"), 4096)
	var seen []int
	receipt, err := suite.client.UploadReceipt(context.Background(), token, "receipt.jpg",
		bytes.NewReader(content), int64(len(content)), func(pct int) {
			seen = append(seen, pct)
		})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), strings.HasPrefix(receipt.ImageURL, "https://storage.receiptvault.test/"))

	require.NotEmpty(suite.T(), seen)
	last := 0
	for _, pct := range seen {
		assert.GreaterOrEqual(suite.T(), pct, 0)
		assert.LessOrEqual(suite.T(), pct, 100)
		assert.GreaterOrEqual(suite.T(), pct, last, "progress must be non-decreasing")
		last = pct
	}
	assert.Equal(suite.T(), 100, seen[len(seen)-1], "progress must culminate at completion")
}

func (suite *ClientTestSuite) TestAnalyticsDateWindow() {
	owner := suite.backend.AddUser("owner@example.com", "hunter2hunter2", "")
	token := suite.backend.TokenFor(owner.ID)

	seed := []struct {
		day      *time.Time
		amount   float64
		vat      float64
		category string
	}{
		{date(2024, time.March, 1), 100, 20, "Travel Costs"},       // before window
		{date(2024, time.April, 6), 50, 10, "Travel Costs"},        // first day
		{date(2025, time.April, 5), 30, 6, "Office Supplies"},      // last day
		{date(2025, time.April, 6), 999, 199.8, "Office Supplies"}, // after window
	}
	for _, r := range seed {
		suite.backend.AddReceipt(owner.ID, models.Receipt{
			ImageURL:    "https://storage.receiptvault.test/x.jpg",
			Date:        r.day,
			TotalAmount: r.amount,
			TaxAmount:   r.vat,
			Category:    r.category,
		})
	}

	summary, err := suite.client.Analytics(context.Background(), token,
		date(2024, time.April, 6), date(2025, time.April, 5))
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), 2, summary.ReceiptCount)
	assert.Equal(suite.T(), 80.0, summary.TotalAmount)
	assert.Equal(suite.T(), 16.0, summary.TotalVAT)
	require.Len(suite.T(), summary.Categories, 2)
	assert.Equal(suite.T(), "Travel Costs", summary.Categories[0].Category, "sorted by total descending")
	require.Len(suite.T(), summary.MonthlyBreakdown, 2)
	assert.Equal(suite.T(), "2024-04", summary.MonthlyBreakdown[0].Month)

	// Absent bounds mean all time.
	all, err := suite.client.Analytics(context.Background(), token, nil, nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4, all.ReceiptCount)
}

func (suite *ClientTestSuite) TestSubscriptionEndpoints() {
	owner := suite.backend.AddUser("owner@example.com", "hunter2hunter2", "")
	suite.backend.SetPlan(owner.ID, "professional")
	token := suite.backend.TokenFor(owner.ID)
	ctx := context.Background()

	status, err := suite.client.SubscriptionStatus(ctx, token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "professional", status.Plan)

	session, err := suite.client.CreateCheckoutSession(ctx, token, "pro_plus")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), strings.HasPrefix(session.URL, "https://checkout.receiptvault.test/"))

	_, err = suite.client.CreateCheckoutSession(ctx, token, "gold")
	var valErr *ValidationError
	require.ErrorAs(suite.T(), err, &valErr)

	result, err := suite.client.SyncSubscription(ctx, token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "professional", result.Plan)
}

func (suite *ClientTestSuite) TestErrorTaxonomy() {
	owner := suite.backend.AddUser("owner@example.com", "hunter2hunter2", "")
	ctx := context.Background()

	// Expired credential: authentication error.
	expired := suite.backend.ExpiredTokenFor(owner.ID)
	_, err := suite.client.CurrentUser(ctx, expired)
	var authErr *AuthError
	require.ErrorAs(suite.T(), err, &authErr)

	// Unknown resource: not found.
	token := suite.backend.TokenFor(owner.ID)
	_, err = suite.client.GetReceipt(ctx, token, 9999)
	var notFound *NotFoundError
	require.ErrorAs(suite.T(), err, &notFound)

	// Unreachable backend: transport error.
	dead := httptest.NewServer(suite.backend.Handler())
	dead.Close()
	unreachable := New(dead.URL, nil)
	_, err = unreachable.CurrentUser(ctx, token)
	var transport *TransportError
	require.ErrorAs(suite.T(), err, &transport)
}
