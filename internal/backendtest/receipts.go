package backendtest

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"receiptvault/internal/models"
)

type receipt struct {
	models.Receipt
	deletedAt *time.Time
}

// AddReceipt seeds a receipt for a user, bypassing HTTP. Zero-value status
// defaults to completed so seeded receipts count toward analytics.
func (s *Server) AddReceipt(userID int64, r models.Receipt) models.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextReceipt
	s.nextReceipt++
	r.UserID = userID
	if r.Status == "" {
		r.Status = models.StatusCompleted
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.receipts[r.ID] = &receipt{Receipt: r}
	return r
}

// findReceipt returns the caller's receipt by path ID, or writes a 404.
// Deleted receipts are excluded unless includeDeleted is set.
func (s *Server) findReceipt(w http.ResponseWriter, r *http.Request, owner int64, includeDeleted bool) *receipt {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Receipt not found")
		return nil
	}

	s.mu.Lock()
	rec, ok := s.receipts[id]
	s.mu.Unlock()
	if !ok || rec.UserID != owner || (!includeDeleted && rec.deletedAt != nil) {
		writeDetail(w, http.StatusNotFound, "Receipt not found")
		return nil
	}
	return rec
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}

	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	var out []models.Receipt
	for _, rec := range s.receipts {
		if rec.UserID == u.ID && rec.deletedAt == nil {
			out = append(out, rec.Receipt)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if skip > len(out) {
		skip = len(out)
	}
	out = out[skip:]
	if limit < len(out) {
		out = out[:limit]
	}
	if out == nil {
		out = []models.Receipt{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}

	var req struct {
		ImageURL   string     `json:"image_url"`
		Vendor     string     `json:"vendor"`
		Date       *time.Time `json:"date"`
		Category   string     `json:"category"`
		Notes      string     `json:"notes"`
		IsBusiness int        `json:"is_business"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ImageURL == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "image_url is required")
		return
	}

	created := s.AddReceipt(u.ID, models.Receipt{
		ImageURL:   req.ImageURL,
		Vendor:     req.Vendor,
		Date:       req.Date,
		Category:   req.Category,
		Notes:      req.Notes,
		IsBusiness: req.IsBusiness,
		Status:     models.StatusPending,
	})
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "could not read file")
		return
	}

	object := uuid.NewString()
	s.mu.Lock()
	s.uploads[object] = content
	s.mu.Unlock()

	created := s.AddReceipt(u.ID, models.Receipt{
		ImageURL: "https://storage.receiptvault.test/" + object,
		Status:   models.StatusCompleted,
	})
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	rec := s.findReceipt(w, r, u.ID, false)
	if rec == nil {
		return
	}
	writeJSON(w, http.StatusOK, rec.Receipt)
}

func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	rec := s.findReceipt(w, r, u.ID, false)
	if rec == nil {
		return
	}

	var req struct {
		Vendor      *string    `json:"vendor"`
		Date        *time.Time `json:"date"`
		TotalAmount *float64   `json:"total_amount"`
		TaxAmount   *float64   `json:"tax_amount"`
		Items       *string    `json:"items"`
		Category    *string    `json:"category"`
		Notes       *string    `json:"notes"`
		IsBusiness  *int       `json:"is_business"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	if req.Vendor != nil {
		rec.Vendor = *req.Vendor
	}
	if req.Date != nil {
		rec.Date = req.Date
	}
	if req.TotalAmount != nil {
		rec.TotalAmount = *req.TotalAmount
	}
	if req.TaxAmount != nil {
		rec.TaxAmount = *req.TaxAmount
	}
	if req.Items != nil {
		rec.Items = *req.Items
	}
	if req.Category != nil {
		rec.Category = *req.Category
	}
	if req.Notes != nil {
		rec.Notes = *req.Notes
	}
	if req.IsBusiness != nil {
		rec.IsBusiness = *req.IsBusiness
	}
	now := time.Now().UTC()
	rec.UpdatedAt = &now
	out := rec.Receipt
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	rec := s.findReceipt(w, r, u.ID, false)
	if rec == nil {
		return
	}

	s.mu.Lock()
	now := time.Now().UTC()
	rec.deletedAt = &now
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApproveReceipt(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	rec := s.findReceipt(w, r, u.ID, false)
	if rec == nil {
		return
	}

	s.mu.Lock()
	if rec.Status != models.StatusPending {
		status := rec.Status
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest,
			"Receipt is not pending approval (current status: "+string(status)+")")
		return
	}
	rec.Status = models.StatusCompleted
	out := rec.Receipt
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRestoreReceipt(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	rec := s.findReceipt(w, r, u.ID, true)
	if rec == nil {
		return
	}

	s.mu.Lock()
	rec.deletedAt = nil
	out := rec.Receipt
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListDeleted(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}

	s.mu.Lock()
	out := []models.Receipt{}
	for _, rec := range s.receipts {
		if rec.UserID == u.ID && rec.deletedAt != nil {
			out = append(out, rec.Receipt)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

// handleAnalytics aggregates completed receipts the way the real backend
// does: totals, per-category breakdown with percentages, and a monthly
// series, optionally bounded by start_date/end_date (inclusive).
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}

	var start, end *time.Time
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			start = &t
		}
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			end = &t
		}
	}

	s.mu.Lock()
	var matched []models.Receipt
	for _, rec := range s.receipts {
		if rec.UserID != u.ID || rec.deletedAt != nil || rec.Status != models.StatusCompleted {
			continue
		}
		if rec.Date != nil {
			day := rec.Date.Truncate(24 * time.Hour)
			if start != nil && day.Before(*start) {
				continue
			}
			if end != nil && day.After(*end) {
				continue
			}
		} else if start != nil || end != nil {
			continue
		}
		matched = append(matched, rec.Receipt)
	}
	s.mu.Unlock()

	summary := models.AnalyticsSummary{
		Categories:       []models.CategoryBreakdown{},
		MonthlyBreakdown: []models.MonthlyBreakdown{},
	}
	byCategory := make(map[string]*models.CategoryBreakdown)
	byMonth := make(map[string]*models.MonthlyBreakdown)

	for _, rec := range matched {
		summary.TotalAmount += rec.TotalAmount
		summary.TotalVAT += rec.TaxAmount
		summary.ReceiptCount++

		cat := rec.Category
		if cat == "" {
			cat = "Uncategorized"
		}
		cb, ok := byCategory[cat]
		if !ok {
			cb = &models.CategoryBreakdown{Category: cat}
			byCategory[cat] = cb
		}
		cb.Total += rec.TotalAmount
		cb.VAT += rec.TaxAmount
		cb.Count++

		if rec.Date != nil {
			month := rec.Date.Format("2006-01")
			mb, ok := byMonth[month]
			if !ok {
				mb = &models.MonthlyBreakdown{Month: month}
				byMonth[month] = mb
			}
			mb.Total += rec.TotalAmount
			mb.VAT += rec.TaxAmount
			mb.Count++
		}
	}

	for _, cb := range byCategory {
		if summary.TotalAmount > 0 {
			cb.Percentage = math.Round(cb.Total/summary.TotalAmount*1000) / 10
		}
		summary.Categories = append(summary.Categories, *cb)
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		return summary.Categories[i].Total > summary.Categories[j].Total
	})

	for _, mb := range byMonth {
		summary.MonthlyBreakdown = append(summary.MonthlyBreakdown, *mb)
	}
	sort.Slice(summary.MonthlyBreakdown, func(i, j int) bool {
		return summary.MonthlyBreakdown[i].Month < summary.MonthlyBreakdown[j].Month
	})

	summary.TotalAmount = math.Round(summary.TotalAmount*100) / 100
	summary.TotalVAT = math.Round(summary.TotalVAT*100) / 100

	writeJSON(w, http.StatusOK, summary)
}
