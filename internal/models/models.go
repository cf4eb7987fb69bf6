package models

import "time"

// User represents a ReceiptVault account as returned by the backend.
// Users are created on registration and are read-only from the client side.
type User struct {
	ID                 int64     `json:"id"`
	Email              string    `json:"email"`
	FullName           string    `json:"full_name,omitempty"`
	UniqueReceiptEmail string    `json:"unique_receipt_email"`
	IsActive           bool      `json:"is_active"`
	SubscriptionPlan   string    `json:"subscription_plan,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// ReceiptStatus is the processing state of an uploaded receipt.
type ReceiptStatus string

const (
	StatusPending    ReceiptStatus = "pending"
	StatusProcessing ReceiptStatus = "processing"
	StatusCompleted  ReceiptStatus = "completed"
	StatusFailed     ReceiptStatus = "failed"
)

// Receipt is a receipt record. All extracted fields are computed by the
// backend's OCR pipeline; the client only transports and edits them.
// IsBusiness uses the backend's encoding: 1 = business, 0 = personal.
type Receipt struct {
	ID          int64         `json:"id"`
	UserID      int64         `json:"user_id"`
	ImageURL    string        `json:"image_url"`
	Vendor      string        `json:"vendor,omitempty"`
	Date        *time.Time    `json:"date,omitempty"`
	Currency    string        `json:"currency,omitempty"`
	TotalAmount float64       `json:"total_amount,omitempty"`
	TaxAmount   float64       `json:"tax_amount,omitempty"`
	Items       string        `json:"items,omitempty"`
	Category    string        `json:"category,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	IsBusiness  int           `json:"is_business"`
	Status      ReceiptStatus `json:"status"`
	OCRRawText  string        `json:"ocr_raw_text,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty"`
}

// Token is the bearer credential issued by the login endpoint.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// CategoryBreakdown is one category row of an analytics summary.
type CategoryBreakdown struct {
	Category   string  `json:"category"`
	Total      float64 `json:"total"`
	VAT        float64 `json:"vat"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// MonthlyBreakdown is one month row of an analytics summary.
// Month is formatted "YYYY-MM".
type MonthlyBreakdown struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
	VAT   float64 `json:"vat"`
	Count int     `json:"count"`
}

// AnalyticsSummary is the server-computed expense aggregation.
// The client passes it through verbatim.
type AnalyticsSummary struct {
	TotalAmount      float64             `json:"total_amount"`
	TotalVAT         float64             `json:"total_vat"`
	ReceiptCount     int                 `json:"receipt_count"`
	Categories       []CategoryBreakdown `json:"categories"`
	MonthlyBreakdown []MonthlyBreakdown  `json:"monthly_breakdown"`
}

// SubscriptionStatus mirrors the backend's view of the user's subscription,
// itself derived from the payment processor's records.
type SubscriptionStatus struct {
	Plan              string     `json:"plan"`
	Status            string     `json:"status,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}
