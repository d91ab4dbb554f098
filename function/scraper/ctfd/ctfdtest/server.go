// Package ctfdtest runs an in-memory CTFd platform for tests.
package ctfdtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

const (
	DefaultNonce = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	sessionValue = "authenticated"
)

// Server answers the subset of the CTFd routes the dumper talks to.
// Fields may be changed before the first request.
type Server struct {
	*httptest.Server

	Nonce       string
	Username    string
	Password    string
	RequireAuth bool
	// Challenges holds the full records, summaries are derived from them.
	Challenges []map[string]any
	// Files maps url paths to their content.
	Files map[string][]byte
	// FailDetail makes the detail endpoint answer success=false for these ids.
	FailDetail map[string]bool
	// ListStatus overrides the status of the challenge list when non zero.
	ListStatus int

	mu       sync.Mutex
	requests []string
}

func NewServer() *Server {
	s := &Server{
		Nonce:      DefaultNonce,
		Username:   "player",
		Password:   "hunter2",
		Files:      map[string][]byte{},
		FailDetail: map[string]bool{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", s.loginPage)
	mux.HandleFunc("POST /login", s.login)
	mux.HandleFunc("GET /logout", s.logout)
	mux.HandleFunc("GET /challenges", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>challenges</body></html>")
	})
	mux.HandleFunc("GET /api/v1/challenges", s.list)
	mux.HandleFunc("GET /api/v1/challenges/{id}", s.detail)
	mux.HandleFunc("GET /", s.file)
	s.Server = httptest.NewServer(s.record(mux))
	return s
}

// Requests returns every "METHOD /path" seen so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Count returns how many requests hit method and path.
func (s *Server) Count(method string, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r == method+" "+path {
			n++
		}
	}
	return n
}

// CountPrefix returns how many requests had a path starting with prefix.
func (s *Server) CountPrefix(prefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if _, p, _ := strings.Cut(r, " "); strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, `<html><body><form method="post">
<input name="name" type="text">
<input name="password" type="password">
<input id="nonce" name="nonce" type="hidden" value="%s">
</form></body></html>`, s.Nonce)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("nonce") != s.Nonce ||
		r.PostForm.Get("name") != s.Username ||
		r.PostForm.Get("password") != s.Password {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><div class="alert alert-danger" role="alert">
  <span>Your username or password is incorrect</span>
</div></body></html>`)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "session", Value: sessionValue, Path: "/"})
	http.Redirect(w, r, "/challenges", http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "session", Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) authorized(r *http.Request) bool {
	if !s.RequireAuth {
		return true
	}
	c, err := r.Cookie("session")
	return err == nil && c.Value == sessionValue
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "message": "forbidden"})
		return
	}
	if s.ListStatus != 0 {
		writeJSON(w, s.ListStatus, map[string]any{"success": false})
		return
	}
	summaries := make([]map[string]any, 0, len(s.Challenges))
	for _, c := range s.Challenges {
		summary := map[string]any{}
		for _, key := range []string{"id", "name", "category", "value", "solved_by_me", "type"} {
			if v, ok := c[key]; ok {
				summary[key] = v
			}
		}
		summaries = append(summaries, summary)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": summaries})
}

func (s *Server) detail(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "message": "forbidden"})
		return
	}
	id := r.PathValue("id")
	if s.FailDetail[id] {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "locked"})
		return
	}
	for _, c := range s.Challenges {
		if fmt.Sprint(c["id"]) == id {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": c})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "not found"})
}

func (s *Server) file(w http.ResponseWriter, r *http.Request) {
	data, ok := s.Files[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
