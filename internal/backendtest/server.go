// Package backendtest is an in-memory stand-in for the ReceiptVault backend,
// implementing the slice of its REST surface the client consumes. Tests use
// it behind httptest.NewServer to exercise real HTTP round trips, including
// token issuance and rejection, without a running backend.
package backendtest

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"receiptvault/internal/models"
)

const tokenTTL = time.Hour

type user struct {
	models.User
	hashedPassword    []byte
	subscriptionState string
}

// Server is the fixture backend. All state lives in memory; a fresh Server
// per test keeps tests independent.
type Server struct {
	mu          sync.Mutex
	users       map[int64]*user
	receipts    map[int64]*receipt
	uploads     map[string][]byte
	nextUserID  int64
	nextReceipt int64

	jwtSecret []byte

	requests  int
	syncCalls int

	// syncFailStatus, when non-zero, makes the sync endpoint fail with
	// that HTTP status. Set via FailSync.
	syncFailStatus int
	syncFailDetail string

	mux *http.ServeMux
}

// New builds a fixture backend with no users.
func New() *Server {
	s := &Server{
		users:       make(map[int64]*user),
		receipts:    make(map[int64]*receipt),
		uploads:     make(map[string][]byte),
		nextUserID:  1,
		nextReceipt: 1,
		jwtSecret:   []byte("backendtest-" + uuid.NewString()),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/v1/users/me", s.handleCurrentUser)

	mux.HandleFunc("GET /api/v1/receipts", s.handleListReceipts)
	mux.HandleFunc("POST /api/v1/receipts", s.handleCreateReceipt)
	mux.HandleFunc("POST /api/v1/receipts/upload", s.handleUploadReceipt)
	mux.HandleFunc("GET /api/v1/receipts/analytics", s.handleAnalytics)
	mux.HandleFunc("GET /api/v1/receipts/deleted/list", s.handleListDeleted)
	mux.HandleFunc("GET /api/v1/receipts/{id}", s.handleGetReceipt)
	mux.HandleFunc("PUT /api/v1/receipts/{id}", s.handleUpdateReceipt)
	mux.HandleFunc("DELETE /api/v1/receipts/{id}", s.handleDeleteReceipt)
	mux.HandleFunc("POST /api/v1/receipts/{id}/approve", s.handleApproveReceipt)
	mux.HandleFunc("POST /api/v1/receipts/{id}/restore", s.handleRestoreReceipt)

	mux.HandleFunc("GET /api/v1/stripe/subscription-status", s.handleSubscriptionStatus)
	mux.HandleFunc("POST /api/v1/stripe/create-checkout-session", s.handleCreateCheckout)
	mux.HandleFunc("POST /api/v1/stripe/sync-subscription", s.handleSyncSubscription)

	s.mux = mux
	return s
}

// Handler returns the root handler, counting every request it sees.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		s.mu.Unlock()
		s.mux.ServeHTTP(w, r)
	})
}

// Requests reports how many HTTP requests the fixture has served.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// SyncCalls reports how many subscription-sync requests arrived.
func (s *Server) SyncCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncCalls
}

// FailSync makes subsequent sync calls fail with the given status and
// detail. A zero status restores success behavior.
func (s *Server) FailSync(status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncFailStatus = status
	s.syncFailDetail = detail
}

// AddUser seeds an account directly, bypassing HTTP, and returns it.
func (s *Server) AddUser(email, password, fullName string) models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("backendtest: hash password: %v", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.addUserLocked(email, fullName, hash)
	return u.User
}

// SetPlan changes a seeded user's subscription plan.
func (s *Server) SetPlan(userID int64, plan string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.SubscriptionPlan = plan
		u.subscriptionState = "active"
	}
}

// TokenFor mints a valid bearer token for a seeded user, the same way the
// login endpoint does.
func (s *Server) TokenFor(userID int64) string {
	token, err := s.mintToken(userID)
	if err != nil {
		panic(fmt.Sprintf("backendtest: mint token: %v", err))
	}
	return token
}

// ExpiredTokenFor mints a token the bearer middleware will reject.
func (s *Server) ExpiredTokenFor(userID int64) string {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		panic(fmt.Sprintf("backendtest: mint expired token: %v", err))
	}
	return token
}

func (s *Server) addUserLocked(email, fullName string, hash []byte) *user {
	id := s.nextUserID
	s.nextUserID++

	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	code := strings.ToLower(uuid.NewString()[:4])

	u := &user{
		User: models.User{
			ID:                 id,
			Email:              email,
			FullName:           fullName,
			UniqueReceiptEmail: fmt.Sprintf("%s-%s@receipts.receiptvault.app", strings.ToLower(local), code),
			IsActive:           true,
			SubscriptionPlan:   "free",
			CreatedAt:          time.Now().UTC(),
		},
		hashedPassword: hash,
	}
	s.users[id] = u
	return u
}

func (s *Server) mintToken(userID int64) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// requireUser validates the bearer token and returns the caller, writing a
// 401 and returning nil when validation fails.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) *user {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return nil
	}

	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return nil
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return nil
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return nil
	}

	s.mu.Lock()
	u, found := s.users[id]
	s.mu.Unlock()
	if !found {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return nil
	}
	return u
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || len(req.Password) < 8 {
		writeDetail(w, http.StatusUnprocessableEntity, "Password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "hash failure")
		return
	}

	s.mu.Lock()
	for _, u := range s.users {
		if u.Email == req.Email {
			s.mu.Unlock()
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}
	u := s.addUserLocked(req.Email, req.FullName, hash)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, u.User)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid form submission")
		return
	}
	email := r.PostFormValue("username")
	password := r.PostFormValue("password")

	s.mu.Lock()
	var match *user
	for _, u := range s.users {
		if u.Email == email {
			match = u
			break
		}
	}
	s.mu.Unlock()

	if match == nil || bcrypt.CompareHashAndPassword(match.hashedPassword, []byte(password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	token, err := s.mintToken(match.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "token failure")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"user":         match.User,
	})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	writeJSON(w, http.StatusOK, u.User)
}

func (s *Server) handleSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}

	s.mu.Lock()
	state := u.subscriptionState
	plan := u.SubscriptionPlan
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"plan":                 plan,
		"status":               state,
		"cancel_at_period_end": false,
	})
}

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Plan != "professional" && req.Plan != "pro_plus" {
		writeDetail(w, http.StatusBadRequest, "Invalid plan")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"url": "https://checkout.receiptvault.test/c/" + uuid.NewString(),
	})
}

func (s *Server) handleSyncSubscription(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.syncCalls++
	failStatus, failDetail := s.syncFailStatus, s.syncFailDetail
	s.mu.Unlock()

	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	if failStatus != 0 {
		writeDetail(w, failStatus, failDetail)
		return
	}

	s.mu.Lock()
	plan := u.SubscriptionPlan
	state := u.subscriptionState
	s.mu.Unlock()
	if state == "" {
		state = "active"
	}

	writeJSON(w, http.StatusOK, map[string]string{"plan": plan, "status": state})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("backendtest: encode response: %v", err)
	}
}

// writeDetail mirrors the real backend's {"detail": "..."} error shape.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
