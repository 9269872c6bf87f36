package archive

import (
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ListMode selects how ListDigests discovers references.
type ListMode string

const (
	// ListModeIndex parses the archive index page for YYYY-MM links.
	ListModeIndex ListMode = "index"

	// ListModeProbe generates every month from the start year to the current month
	// without requesting the index. Months without a digest turn into
	// ErrDigestMissing when fetched.
	ListModeProbe ListMode = "probe"
)

// Default values used by NewClient.
const (
	defaultDigestPath    = "{ref}/{ref}f.html"
	defaultMissingMarker = "existiert nicht"
	defaultMaxBodySize   = 50 * 1024 * 1024
	defaultStartYear     = 2000

	// missingBodyLimit is the size below which a body containing the missing
	// marker is treated as a placeholder rather than a digest.
	missingBodyLimit = 100

	// pageBodyLimit caps login responses and listing pages.
	pageBodyLimit = 4 * 1024 * 1024
)

// Client talks to one mailing-list archive.
// It is not safe for concurrent use; digestfetch runs strictly sequentially.
type Client struct {
	// httpClient is the template for session clients. Each session gets a
	// shallow copy with its own cookie jar.
	httpClient *http.Client

	loginURL   string
	archiveURL string

	usernameField string
	passwordField string

	listMode  ListMode
	startYear int

	digestPath    string
	missingMarker string
	normalizeUTF8 bool
	maxBodySize   int64

	// now is used for the upper bound in probe mode.
	now func() time.Time

	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithFormFields sets the login form field names.
func WithFormFields(usernameField, passwordField string) ClientOption {
	return func(c *Client) {
		if usernameField != "" {
			c.usernameField = usernameField
		}
		if passwordField != "" {
			c.passwordField = passwordField
		}
	}
}

// WithListMode selects index or probe listing. startYear is only used in probe mode.
func WithListMode(mode ListMode, startYear int) ClientOption {
	return func(c *Client) {
		c.listMode = mode
		if startYear > 0 {
			c.startYear = startYear
		}
	}
}

// WithDigestPath sets the digest path template relative to the archive URL.
func WithDigestPath(template string) ClientOption {
	return func(c *Client) {
		if template != "" {
			c.digestPath = template
		}
	}
}

// WithMissingMarker sets the text identifying placeholder pages for empty months.
// An empty marker disables the check.
func WithMissingMarker(marker string) ClientOption {
	return func(c *Client) {
		c.missingMarker = marker
	}
}

// WithNormalizeUTF8 enables transcoding of digests to UTF-8.
func WithNormalizeUTF8(enabled bool) ClientOption {
	return func(c *Client) {
		c.normalizeUTF8 = enabled
	}
}

// WithMaxBodySize limits the size of a single digest. Zero keeps the default.
func WithMaxBodySize(size int64) ClientOption {
	return func(c *Client) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithClock overrides the current time used by probe mode.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the archive reachable at archiveURL whose
// login form is posted to loginURL. httpClient must not be shared with other
// sessions: its Jar field is replaced per session.
func NewClient(httpClient *http.Client, loginURL, archiveURL string, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{
		httpClient:    httpClient,
		loginURL:      loginURL,
		archiveURL:    archiveURL,
		usernameField: "username",
		passwordField: "password",
		listMode:      ListModeIndex,
		startYear:     defaultStartYear,
		digestPath:    defaultDigestPath,
		missingMarker: defaultMissingMarker,
		maxBodySize:   defaultMaxBodySize,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// ArchiveURL returns the archive index URL.
func (c *Client) ArchiveURL() string {
	return c.archiveURL
}

// ListMode returns how references are discovered.
func (c *Client) ListMode() ListMode {
	return c.listMode
}

// Session is an authenticated archive session.
// It owns the cookie jar filled by the login response.
type Session struct {
	client   *http.Client
	username string
}

// Username returns the member name the session was opened for.
func (s *Session) Username() string {
	return s.username
}
