package davtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Request is a request the server has seen
type Request struct {
	Method        string
	Path          string
	Depth         string
	ContentType   string
	Body          string
	Authorization bool
}

// Server answers scripted routes and 404s everything else. Routes are keyed
// by method and exact path; an empty method matches any method.
type Server struct {
	*httptest.Server

	t        testing.TB
	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []Request
	username string
	password string
}

// NewServer starts a server that is closed when the test ends
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{t: t, routes: map[string]http.HandlerFunc{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func routeKey(method, path string) string {
	return method + " " + path
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_, _, hasAuth := r.BasicAuth()

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Depth:         r.Header.Get("Depth"),
		ContentType:   r.Header.Get("Content-Type"),
		Body:          string(body),
		Authorization: hasAuth,
	})
	handler, ok := s.routes[routeKey(r.Method, r.URL.Path)]
	if !ok {
		handler, ok = s.routes[routeKey("", r.URL.Path)]
	}
	username, password := s.username, s.password
	s.mu.Unlock()

	if username != "" {
		user, pass, _ := r.BasicAuth()
		if user != username || pass != password {
			w.Header().Set("WWW-Authenticate", `Basic realm="davtest"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	if !ok {
		http.NotFound(w, r)
		return
	}
	handler(w, r)
}

// RequireAuth makes every route demand the given Basic credentials
func (s *Server) RequireAuth(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username, s.password = username, password
}

// Handle registers h for method and path
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[routeKey(method, path)] = h
}

// Multistatus answers PROPFIND on path with a 207 built from responses
func (s *Server) Multistatus(path string, responses ...Response) {
	body, err := Multistatus(responses...)
	if err != nil {
		s.t.Fatalf("davtest: %v", err)
	}
	s.Handle("PROPFIND", path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", `application/xml; charset="utf-8"`)
		w.WriteHeader(http.StatusMultiStatus)
		_, _ = io.WriteString(w, body)
	})
}

// Status answers method on path with an empty response of the given code
func (s *Server) Status(method, path string, code int) {
	s.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

// Redirect answers any method on path with a redirect to location
func (s *Server) Redirect(path, location string, code int) {
	s.Handle("", path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", location)
		w.WriteHeader(code)
	})
}

// Options answers OPTIONS on path with the given DAV header
func (s *Server) Options(path, dav string) {
	s.Handle(http.MethodOptions, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("DAV", dav)
		w.Header().Set("Allow", "OPTIONS, GET, PROPFIND, REPORT")
		w.WriteHeader(http.StatusOK)
	})
}

// Requests returns a copy of what the server has received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests matched method and path
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Paths returns the paths requested with method, in order
func (s *Server) Paths(method string) []string {
	var paths []string
	for _, r := range s.Requests() {
		if r.Method == method {
			paths = append(paths, r.Path)
		}
	}
	return paths
}

// URLFor returns the absolute URL of path on this server
func (s *Server) URLFor(path string) string {
	return s.URL + "/" + strings.TrimPrefix(path, "/")
}
