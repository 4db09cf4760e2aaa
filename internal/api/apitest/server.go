// internal/api/apitest/server.go
//
// In-process fake of the remote Phanda API for tests.
// Responsibilities:
//   - chi router mounted under /api with request IDs and panic recovery.
//   - Auth: login/register/refresh/logout issuing HS256 access tokens and
//     opaque refresh tokens; requireAuth middleware on gated routes.
//   - Catalog, progress and user endpoints over in-memory state.
//   - Fault injection (Fail) and call recording (Calls) for client tests.
//
// Notes:
//   - Progress rules mirror the client: completion rewards are paid once per
//     level, hints cost 20 gems.
//   - Rotating the signing secret (ExpireSessions) invalidates every access
//     token without touching refresh tokens.

package apitest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/robalobadob/phanda-client/internal/api"
)

// Credentials of the seeded account.
const (
	SeedEmail    = "ada@example.com"
	SeedPassword = "correct-horse"
)

type account struct {
	user     api.User
	password string
	refresh  string
	progress map[string]api.Progress
}

// Server is a running fake API.
type Server struct {
	t   testing.TB
	srv *httptest.Server

	mu        sync.Mutex
	secret    []byte
	accessTTL time.Duration
	accounts  map[string]*account // by user id
	languages []api.Language
	levels    []api.Level
	faults    map[string]int // "METHOD /path" -> status
	calls     []string
}

// New starts a fake API seeded with one account, the english and spanish
// tracks and three english levels. It is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		t:         t,
		secret:    []byte(uuid.NewString()),
		accessTTL: 15 * time.Minute,
		accounts:  make(map[string]*account),
		faults:    make(map[string]int),
		languages: []api.Language{
			{ID: "english", Name: "English", Flag: "GB", Color: "#1976D2", IsUnlocked: true},
			{ID: "spanish", Name: "Spanish", Flag: "ES", Color: "#C62828", IsUnlocked: true},
		},
		levels: []api.Level{
			{ID: 1, LanguageID: "english", Name: "Egypt - Great Pyramid", Letters: []string{"C", "A", "T", "R"}, TargetWords: []string{"CAT", "CART"}, Landmark: "pyramid.jpg", OrderIndex: 1},
			{ID: 2, LanguageID: "english", Name: "Paris - Eiffel Tower", Letters: []string{"L", "O", "V", "E", "R"}, TargetWords: []string{"LOVE", "ORE", "LOVER"}, Landmark: "eiffel.jpg", OrderIndex: 2},
			{ID: 3, LanguageID: "english", Name: "Rome - Colosseum", Letters: []string{"S", "U", "N", "M", "O", "R"}, TargetWords: []string{"SUN", "WORN", "MOURN"}, Landmark: "colosseum.jpg", OrderIndex: 3},
		},
	}
	s.addAccount(SeedEmail, "ada", SeedPassword)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(jsonContentType)
	r.Use(s.record)
	r.Route("/api", s.routes)

	s.srv = httptest.NewServer(r)
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the API base URL to hand to api.Options.
func (s *Server) URL() string { return s.srv.URL + "/api" }

// Fail makes every following request to "METHOD /path" (path relative to
// the API root) answer with status until Heal is called.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+path] = status
}

// Heal removes all injected failures.
func (s *Server) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.faults)
}

// Calls returns "METHOD /path" for every request seen so far.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CountCalls returns how many times "METHOD /path" was requested.
func (s *Server) CountCalls(method, path string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == method+" "+path {
			n++
		}
	}
	return n
}

// SetAccessTTL changes the lifetime of access tokens issued from now on.
// A negative TTL issues tokens that are already expired.
func (s *Server) SetAccessTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTTL = d
}

// ExpireSessions invalidates every access token issued so far.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = []byte(uuid.NewString())
}

// RevokeRefreshTokens makes every outstanding refresh token unusable.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		a.refresh = ""
	}
}

// SeedUser returns the seeded account.
func (s *Server) SeedUser() api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.user.Email == SeedEmail {
			return a.user
		}
	}
	return api.User{}
}

// SetGems sets the seeded account's gem balance.
func (s *Server) SetGems(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.user.Email == SeedEmail {
			a.user.TotalGems = n
		}
	}
}

// SetProgress replaces one of the seeded account's language records.
func (s *Server) SetProgress(p api.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.user.Email == SeedEmail {
			p.UserID = a.user.ID
			a.progress[p.LanguageID] = p
		}
	}
}

// ------------------------------- routes ------------------------------------

func (s *Server) routes(r chi.Router) {
	r.Use(s.inject)

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/refresh", s.handleRefresh)

	r.Get("/languages", s.handleLanguages)
	r.Get("/languages/{id}", s.handleLanguage)
	r.Get("/levels", s.handleLevels)
	r.Get("/levels/{id}", s.handleLevel)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/auth/logout", func(w http.ResponseWriter, r *http.Request) { writeData(w, nil) })
		r.Get("/progress", s.handleAllProgress)
		r.Get("/progress/{languageId}", s.handleLanguageProgress)
		r.Post("/progress/complete-level", s.handleCompleteLevel)
		r.Post("/progress/use-hint", s.handleUseHint)
		r.Post("/progress/add-gems", s.handleAddGems)
		r.Get("/users/profile", s.handleProfile)
		r.Get("/users/stats", s.handleStats)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", r.URL.Path)
	})
}

// ----------------------------- middleware ----------------------------------

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, r.Method+" "+strings.TrimPrefix(r.URL.Path, "/api"))
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status, ok := s.faults[r.Method+" "+strings.TrimPrefix(r.URL.Path, "/api")]
		s.mu.Unlock()
		if ok {
			writeError(w, status, "injected", "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxAccount struct{}

// requireAuth rejects requests without a valid, current access token.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(a), "bearer ") {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "")
			return
		}
		s.mu.Lock()
		secret := s.secret
		s.mu.Unlock()

		claims := jwt.MapClaims{}
		tok, err := jwt.ParseWithClaims(strings.TrimSpace(a[7:]), claims, func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil || !tok.Valid {
			writeError(w, http.StatusUnauthorized, "Invalid token", "")
			return
		}
		id, _ := claims.GetSubject()

		s.mu.Lock()
		acct := s.accounts[id]
		s.mu.Unlock()
		if acct == nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", "")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithAccount(r, acct)))
	})
}

func contextWithAccount(r *http.Request, a *account) context.Context {
	return context.WithValue(r.Context(), ctxAccount{}, a)
}

func accountFrom(r *http.Request) *account {
	a, _ := r.Context().Value(ctxAccount{}).(*account)
	return a
}

// -------------------------------- auth -------------------------------------

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body api.Credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Email, body.Email) && a.password == body.Password {
			writeData(w, api.AuthResult{User: a.user, Tokens: s.issueLocked(a)})
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "Invalid credentials", "Invalid email or password")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body api.Registration
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "")
		return
	}
	if body.Email == "" || len(body.Password) < 8 || len(body.Username) < 3 {
		writeError(w, http.StatusBadRequest, "Validation failed", "username, email and an 8+ char password are required")
		return
	}
	s.mu.Lock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Email, body.Email) {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, "Email taken", "")
			return
		}
	}
	s.mu.Unlock()

	a := s.addAccount(body.Email, body.Username, body.Password)
	s.mu.Lock()
	defer s.mu.Unlock()
	writeData(w, api.AuthResult{User: a.user, Tokens: s.issueLocked(a)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_json", "")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.refresh != "" && a.refresh == body.RefreshToken {
			writeData(w, map[string]api.Tokens{"tokens": s.issueLocked(a)})
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "Invalid refresh token", "")
}

// ------------------------------ catalog ------------------------------------

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeData(w, s.languages)
}

func (s *Server) handleLanguage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.languages {
		if l.ID == id {
			writeData(w, l)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Language not found", "")
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	lang := r.URL.Query().Get("languageId")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.Level{}
	for _, l := range s.levels {
		if lang == "" || l.LanguageID == lang {
			out = append(out, l)
		}
	}
	writeData(w, out)
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid level id", "")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.levels {
		if l.ID == id {
			writeData(w, l)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Level not found", "")
}

// ------------------------------ progress -----------------------------------

func (s *Server) handleAllProgress(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.Progress{}
	for _, p := range a.progress {
		out = append(out, p)
	}
	slices.SortFunc(out, func(x, y api.Progress) int { return strings.Compare(x.LanguageID, y.LanguageID) })
	writeData(w, out)
}

func (s *Server) handleLanguageProgress(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r)
	lang := chi.URLParam(r, "languageId")
	s.mu.Lock()
	defer s.mu.Unlock()
	writeData(w, s.progressLocked(a, lang))
}

func (s *Server) handleCompleteLevel(w http.ResponseWriter, r *http.Request) {
	var body api.CompleteLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.LevelID <= 0 || body.LanguageID == "" {
		writeError(w, http.StatusBadRequest, "Validation failed", "")
		return
	}
	a := accountFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.progressLocked(a, body.LanguageID)
	if !slices.Contains(p.CompletedLevels, body.LevelID) {
		p.CompletedLevels = append(p.CompletedLevels, body.LevelID)
		p.TotalStars += body.Stars
		a.user.TotalGems += 50
	}
	p.CurrentLevel = max(p.CurrentLevel, body.LevelID+1)
	p.HintsUsed += body.HintsUsed
	a.progress[body.LanguageID] = p
	writeData(w, p)
}

func (s *Server) handleUseHint(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.user.TotalGems < 20 {
		writeError(w, http.StatusBadRequest, "Insufficient gems", "Not enough gems to use a hint")
		return
	}
	a.user.TotalGems -= 20
	a.user.TotalHintsUsed++
	writeData(w, api.HintResult{GemsUsed: 20, RemainingGems: a.user.TotalGems})
}

func (s *Server) handleAddGems(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Validation failed", "amount must be positive")
		return
	}
	a := accountFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	a.user.TotalGems += body.Amount
	writeData(w, api.GemsResult{TotalGems: a.user.TotalGems})
}

// -------------------------------- users ------------------------------------

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	writeData(w, a.user)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	stars, levels := 0, 0
	for _, p := range a.progress {
		stars += p.TotalStars
		levels += len(p.CompletedLevels)
	}
	writeData(w, map[string]int{
		"totalStars":      stars,
		"levelsCompleted": levels,
		"totalGems":       a.user.TotalGems,
		"totalHintsUsed":  a.user.TotalHintsUsed,
	})
}

// ------------------------------- helpers -----------------------------------

func (s *Server) addAccount(email, username, password string) *account {
	a := &account{
		user: api.User{
			ID:        uuid.NewString(),
			Email:     email,
			Username:  username,
			TotalGems: 100,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
		password: password,
		progress: make(map[string]api.Progress),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.user.ID] = a
	return a
}

// issueLocked signs a new access token and rotates the refresh token.
func (s *Server) issueLocked(a *account) api.Tokens {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": a.user.ID,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTTL).Unix(),
		"jti": uuid.NewString(),
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		s.t.Errorf("apitest: sign token: %v", err)
	}
	a.refresh = uuid.NewString()
	return api.Tokens{AccessToken: signed, RefreshToken: a.refresh}
}

func (s *Server) progressLocked(a *account, lang string) api.Progress {
	if p, ok := a.progress[lang]; ok {
		return p
	}
	return api.Progress{
		ID:              uuid.NewString(),
		UserID:          a.user.ID,
		LanguageID:      lang,
		CurrentLevel:    1,
		CompletedLevels: []int{},
	}
}

func writeData(w http.ResponseWriter, data any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.WriteHeader(status)
	body := map[string]any{"success": false, "error": code}
	if msg != "" {
		body["message"] = msg
	}
	_ = json.NewEncoder(w).Encode(body)
}
