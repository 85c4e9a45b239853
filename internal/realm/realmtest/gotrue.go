// Package realmtest runs an in-process GoTrue stand-in for tests.
package realmtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fadilmartias/questy/internal/config"
	"github.com/fadilmartias/questy/internal/realm"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AnonKey    = "anon-key"
	ServiceKey = "service-key"
	Secret     = "test-jwt-secret"
)

type user struct {
	ID       string
	Email    string
	Password string
	Metadata realm.Metadata
}

type Server struct {
	*httptest.Server

	mu    sync.Mutex
	users map[string]*user
	calls map[string]int

	// RateLimitSignUps rejects that many sign-ups with 429 before accepting.
	RateLimitSignUps int
	// ConfirmEmail makes sign-up return a bare user instead of a session.
	ConfirmEmail bool
	// FailStatus, when set, fails every sign-up and sign-in with this status.
	FailStatus int
	FailBody   string
	TokenTTL   time.Duration

	deleted []string
}

func New(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		users:    make(map[string]*user),
		calls:    make(map[string]int),
		TokenTTL: time.Hour,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/signup", s.signUp)
	mux.HandleFunc("/auth/v1/token", s.token)
	mux.HandleFunc("/auth/v1/logout", s.logout)
	mux.HandleFunc("/auth/v1/user", s.updateUser)
	mux.HandleFunc("/auth/v1/admin/users/", s.adminDelete)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Config returns a realm configuration pointing at the stand-in.
func (s *Server) Config(role string) *config.RealmConfig {
	return &config.RealmConfig{
		Name:           role,
		Role:           role,
		URL:            s.URL,
		AnonKey:        AnonKey,
		ServiceRoleKey: ServiceKey,
		JWTSecret:      Secret,
		StorageKey:     role + "-auth-token",
	}
}

func (s *Server) AddUser(email, password string, md realm.Metadata) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &user{ID: uuid.NewString(), Email: email, Password: password, Metadata: md}
	s.users[strings.ToLower(email)] = u
	return u.ID
}

func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Token signs an access token for id with the given expiry.
func (s *Server) Token(id string, expiresAt time.Time) string {
	claims := jwt.RegisteredClaims{
		Issuer:    s.URL + "/auth/v1",
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(Secret))
	if err != nil {
		panic(err)
	}
	return tok
}

func (s *Server) count(r *http.Request) {
	s.mu.Lock()
	s.calls[r.URL.Path]++
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func userJSON(u *user) map[string]any {
	return map[string]any{
		"id":            u.ID,
		"email":         u.Email,
		"user_metadata": u.Metadata,
	}
}

func (s *Server) sessionJSON(u *user) map[string]any {
	exp := time.Now().Add(s.TokenTTL)
	return map[string]any{
		"access_token":  s.Token(u.ID, exp),
		"refresh_token": "refresh-" + u.ID,
		"token_type":    "bearer",
		"expires_in":    int(s.TokenTTL.Seconds()),
		"expires_at":    exp.Unix(),
		"user":          userJSON(u),
	}
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	s.count(r)
	var req struct {
		Email    string         `json:"email"`
		Password string         `json:"password"`
		Data     realm.Metadata `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "bad json"})
		return
	}

	s.mu.Lock()
	if s.FailStatus != 0 {
		status, body := s.FailStatus, s.FailBody
		s.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}
	if s.RateLimitSignUps > 0 {
		s.RateLimitSignUps--
		s.mu.Unlock()
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"msg": "email rate limit exceeded"})
		return
	}
	key := strings.ToLower(req.Email)
	if _, ok := s.users[key]; ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code": 422, "error_code": "user_already_exists", "msg": "User already registered",
		})
		return
	}
	u := &user{ID: uuid.NewString(), Email: req.Email, Password: req.Password, Metadata: req.Data}
	s.users[key] = u
	confirm := s.ConfirmEmail
	s.mu.Unlock()

	if confirm {
		writeJSON(w, http.StatusOK, userJSON(u))
		return
	}
	writeJSON(w, http.StatusOK, s.sessionJSON(u))
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	s.count(r)
	var req struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	if s.FailStatus != 0 {
		status, body := s.FailStatus, s.FailBody
		s.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}
	var found *user
	if r.URL.Query().Get("grant_type") == "refresh_token" {
		for _, u := range s.users {
			if "refresh-"+u.ID == req.RefreshToken {
				found = u
			}
		}
	} else if u, ok := s.users[strings.ToLower(req.Email)]; ok && u.Password == req.Password {
		found = u
	}
	s.mu.Unlock()

	if found == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid_grant", "error_description": "Invalid login credentials",
		})
		return
	}
	writeJSON(w, http.StatusOK, s.sessionJSON(found))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.count(r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	s.count(r)
	subject, ok := s.subject(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}
	var req struct {
		Data realm.Metadata `json:"data"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == subject {
			u.Metadata = req.Data
			writeJSON(w, http.StatusOK, userJSON(u))
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"msg": "user not found"})
}

func (s *Server) adminDelete(w http.ResponseWriter, r *http.Request) {
	s.count(r)
	if r.Header.Get("apikey") != ServiceKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/auth/v1/admin/users/")
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, u := range s.users {
		if u.ID == id {
			delete(s.users, k)
			s.deleted = append(s.deleted, id)
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"msg": "user not found"})
}

func (s *Server) subject(r *http.Request) (string, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(Secret), nil
	})
	if err != nil {
		return "", false
	}
	return claims.Subject, true
}

// HasUser reports whether an identity with the e-mail exists.
func (s *Server) HasUser(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[strings.ToLower(email)]
	return ok
}

func (s *Server) DeletedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}
