// Package archivetest provides an in-process mailing-list archive for tests.
//
// The server mimics a Mailman private archive: a login form that answers
// bad credentials with the form again, a cookie-protected index page
// linking each month, and one digest page per month.
package archivetest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	cookieName  = "westfalengen+member"
	cookieValue = "c2Vzc2lvbi10b2tlbg"

	loginPath   = "/mm/private/westfalengen/"
	archivePath = "/mm/archiv/westfalengen/"

	// Placeholder is served with status 200 for months passed to WithMissing.
	Placeholder = "<p>Das Archiv existiert nicht</p>"
)

const loginForm = `<html><head><title>westfalengen Private Archive Authentication</title></head>
<body><form method="post" action="/mm/private/westfalengen/">
<input type="text" name="username"><input type="password" name="password">
<input type="submit" name="submit" value="Let me in...">
</form></body></html>`

// Server is a fake archive.
type Server struct {
	username string
	password string

	// digests maps "YYYY-MM" to the digest body.
	digests map[string][]byte

	// missing lists months linked from the index whose digest page is the
	// short placeholder.
	missing []string

	// broken lists months whose digest request fails with status 500.
	broken []string

	contentType string

	srv *httptest.Server

	expired  atomic.Bool
	logins   atomic.Int32
	mu       sync.Mutex
	requests []string
}

// Option configures a Server.
type Option func(*Server)

// WithMissing links months from the index whose digest page is the
// "does not exist" placeholder.
func WithMissing(refs ...string) Option {
	return func(s *Server) {
		s.missing = append(s.missing, refs...)
	}
}

// WithBroken links months from the index whose digest request fails with
// status 500.
func WithBroken(refs ...string) Option {
	return func(s *Server) {
		s.broken = append(s.broken, refs...)
	}
}

// WithContentType sets the Content-Type sent with digest bodies.
func WithContentType(ct string) Option {
	return func(s *Server) {
		s.contentType = ct
	}
}

// New starts a server accepting the given credentials and serving digests,
// keyed by "YYYY-MM".
func New(username, password string, digests map[string][]byte, opts ...Option) *Server {
	s := &Server{
		username:    username,
		password:    password,
		digests:     digests,
		contentType: "text/html; charset=utf-8",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// URL returns the server root.
func (s *Server) URL() string {
	return s.srv.URL
}

// LoginURL returns the login form target.
func (s *Server) LoginURL() string {
	return s.srv.URL + loginPath
}

// ArchiveURL returns the archive index URL.
func (s *Server) ArchiveURL() string {
	return s.srv.URL + archivePath
}

// Expire invalidates all sessions: authenticated pages answer with the
// login form from now on.
func (s *Server) Expire() {
	s.expired.Store(true)
}

// Logins returns the number of login attempts received.
func (s *Server) Logins() int {
	return int(s.logins.Load())
}

// Requests returns the paths requested so far, in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.mu.Unlock()

	switch {
	case r.URL.Path == loginPath && r.Method == http.MethodPost:
		s.login(w, r)
	case r.URL.Path == loginPath:
		writeHTML(w, loginForm)
	case !s.authorized(r):
		writeHTML(w, loginForm)
	case r.URL.Path == archivePath:
		s.index(w)
	case strings.HasPrefix(r.URL.Path, archivePath):
		s.digest(w, strings.TrimPrefix(r.URL.Path, archivePath))
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.logins.Add(1)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("username") != s.username || r.PostForm.Get("password") != s.password {
		writeHTML(w, loginForm)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: cookieValue, Path: "/"})
	writeHTML(w, `<html><body><h1>westfalengen Archives</h1><a href="`+archivePath+`">Archive</a></body></html>`)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.expired.Load() {
		return false
	}
	c, err := r.Cookie(cookieName)
	return err == nil && c.Value == cookieValue
}

// index lists every month in reverse order with the usual Mailman link set
// per month, plus unrelated links.
func (s *Server) index(w http.ResponseWriter) {
	months := make([]string, 0, len(s.digests)+len(s.missing)+len(s.broken))
	for ref := range s.digests {
		months = append(months, ref)
	}
	months = append(months, s.missing...)
	months = append(months, s.broken...)
	slices.Sort(months)
	months = slices.Compact(months)
	slices.Reverse(months)

	var b strings.Builder
	b.WriteString(`<html><body><h1>westfalengen Archives</h1>`)
	b.WriteString(`<a href="/mm/listinfo/westfalengen">info</a><table>`)
	for _, m := range months {
		fmt.Fprintf(&b, `<tr><td>%s</td><td><a href="%s/thread.html">[ Thread ]</a>`, html.EscapeString(m), m)
		fmt.Fprintf(&b, `<a href="%s/date.html">[ Date ]</a>`, m)
		fmt.Fprintf(&b, `<a href="%s/%sf.html">[ Digest ]</a></td></tr>`, m, m)
	}
	b.WriteString(`</table></body></html>`)
	writeHTML(w, b.String())
}

func (s *Server) digest(w http.ResponseWriter, rest string) {
	ref, file, ok := strings.Cut(rest, "/")
	if !ok || file != ref+"f.html" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if slices.Contains(s.broken, ref) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if slices.Contains(s.missing, ref) {
		writeHTML(w, Placeholder)
		return
	}
	body, ok := s.digests[ref]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", s.contentType)
	_, _ = w.Write(body) //nolint:errcheck // test server
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body)) //nolint:errcheck // test server
}
