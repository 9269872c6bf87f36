package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// The archive defaults point at the WGGF (Westfaelische Gesellschaft fuer
// Genealogie und Familienforschung) mailing list on list.genealogy.net,
// which is the archive this tool was written for.
const (
	// DefaultLoginURL is the Mailman private-archive page that accepts
	// the member login form.
	DefaultLoginURL = "https://list.genealogy.net/mm/private/westfalengen/"

	// DefaultArchiveURL is the archive index listing one directory per month.
	DefaultArchiveURL = "https://list.genealogy.net/mm/archiv/westfalengen/"

	// DefaultDigestPath is the per-month digest location relative to the archive URL.
	// Placeholders: {ref} (YYYY-MM), {year} (YYYY), {month} (MM).
	DefaultDigestPath = "{ref}/{ref}f.html"

	// DefaultFilenamePrefix is prepended to the reference to build output filenames.
	DefaultFilenamePrefix = "wggf-monthly-digest-"

	// DefaultFileExtension is appended to the reference to build output filenames.
	DefaultFileExtension = ".html"

	// DefaultMissingMarker is the text the archive returns instead of a digest
	// for a month without posts ("Die Datei existiert nicht").
	DefaultMissingMarker = "existiert nicht"

	// DefaultUsernameField and DefaultPasswordField are the Mailman login form field names.
	DefaultUsernameField = "username"
	DefaultPasswordField = "password"

	// DefaultStartYear is the first year probed in probe mode.
	// The WGGF archive starts in 2000.
	DefaultStartYear = 2000

	// DefaultTimeout bounds every single HTTP request.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxBodySize limits a single digest download.
	// Monthly digests of busy lists reach a few megabytes.
	DefaultMaxBodySize = 50 * 1024 * 1024 // 50MB

	// DefaultUserAgent identifies digestfetch in HTTP requests.
	DefaultUserAgent = "digestfetch/1.0 (+https://github.com/nao1215/digestfetch)"

	// AppName is the application name used for XDG directory paths.
	AppName = "digestfetch"
)

// List modes.
const (
	// ListModeIndex parses the archive index page for month directories.
	ListModeIndex = "index"

	// ListModeProbe generates every month from StartYear up to the current month.
	ListModeProbe = "probe"
)

// Failure policies for per-digest errors.
const (
	// FailurePolicySkip reports a failed digest and continues with the next one.
	FailurePolicySkip = "skip"

	// FailurePolicyAbort stops the run at the first failed digest.
	FailurePolicyAbort = "abort"
)

// Config holds all configuration options for a digestfetch run.
// It is populated from the config file and CLI flags, then passed down
// explicitly; nothing reads global state.
type Config struct {
	// Username and Password are the archive member credentials.
	Username string
	Password string

	// OutDir is the directory digests are written to.
	// It is created on the first successful store, never earlier.
	OutDir string

	// LoginURL receives the login form submission.
	LoginURL string

	// ArchiveURL is the archive index and the base for digest URLs.
	ArchiveURL string

	// UsernameField and PasswordField are the login form field names.
	UsernameField string
	PasswordField string

	// ListMode selects how references are discovered (index or probe).
	ListMode string

	// StartYear is the first year generated in probe mode.
	StartYear int

	// DigestPath is the digest location template relative to ArchiveURL.
	DigestPath string

	// FilenamePrefix and FileExtension wrap the reference in output filenames.
	FilenamePrefix string
	FileExtension  string

	// MissingMarker identifies the short placeholder page served for empty months.
	// Empty disables marker detection; 404 is still treated as missing.
	MissingMarker string

	// NormalizeUTF8 transcodes digest bodies to UTF-8 before storing them.
	// When false the raw bytes are stored unchanged.
	NormalizeUTF8 bool

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string

	// FailurePolicy decides what a failed digest does to the run (skip or abort).
	FailurePolicy string

	// Filter is an optional boolean expression over year, month and ref.
	// Only references for which it evaluates to true are downloaded.
	Filter string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum digest size in bytes.
	MaxBodySize int64

	// Verbose enables debug logging and disables the progress bar.
	Verbose bool

	// ShowProgress enables the terminal progress bar.
	ShowProgress bool

	// SaveHistory records every run in the history database.
	SaveHistory bool

	// HistoryDir is the directory holding the history database.
	// Defaults to the XDG data directory.
	HistoryDir string

	// ReportFile, when set, receives a Markdown report of the run.
	ReportFile string

	// ConfigFilePath is the explicitly requested config file, if any.
	ConfigFilePath string

	// ListName is the selected profile from the configuration file.
	ListName string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		LoginURL:       DefaultLoginURL,
		ArchiveURL:     DefaultArchiveURL,
		UsernameField:  DefaultUsernameField,
		PasswordField:  DefaultPasswordField,
		ListMode:       ListModeIndex,
		StartYear:      DefaultStartYear,
		DigestPath:     DefaultDigestPath,
		FilenamePrefix: DefaultFilenamePrefix,
		FileExtension:  DefaultFileExtension,
		MissingMarker:  DefaultMissingMarker,
		FailurePolicy:  FailurePolicySkip,
		Timeout:        DefaultTimeout,
		UserAgent:      DefaultUserAgent,
		MaxBodySize:    DefaultMaxBodySize,
		ShowProgress:   true,
		SaveHistory:    true,
		HistoryDir:     XDGDataDir(),
	}
}

// ApplyArchive copies the non-zero fields of an archive profile onto the config.
func (c *Config) ApplyArchive(ac ArchiveConfig) {
	if ac.LoginURL != "" {
		c.LoginURL = ac.LoginURL
	}
	if ac.ArchiveURL != "" {
		c.ArchiveURL = ac.ArchiveURL
	}
	if ac.UsernameField != "" {
		c.UsernameField = ac.UsernameField
	}
	if ac.PasswordField != "" {
		c.PasswordField = ac.PasswordField
	}
	if ac.Username != "" {
		c.Username = ac.Username
	}
	if ac.Password != "" {
		c.Password = ac.Password
	}
	if ac.Mode != "" {
		c.ListMode = ac.Mode
	}
	if ac.StartYear != 0 {
		c.StartYear = ac.StartYear
	}
	if ac.DigestPath != "" {
		c.DigestPath = ac.DigestPath
	}
	if ac.FilenamePrefix != nil {
		c.FilenamePrefix = *ac.FilenamePrefix
	}
	if ac.Extension != "" {
		c.FileExtension = ac.Extension
	}
	if ac.MissingMarker != nil {
		c.MissingMarker = *ac.MissingMarker
	}
	if ac.NormalizeUTF8 {
		c.NormalizeUTF8 = true
	}
	if ac.MaxBodySize != 0 {
		c.MaxBodySize = ac.MaxBodySize
	}
	if len(ac.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		for k, v := range ac.Headers {
			c.Headers[k] = v
		}
	}
	if ac.OnError != "" {
		c.FailurePolicy = ac.OnError
	}
	if ac.Filter != "" {
		c.Filter = ac.Filter
	}
}

// XDGDataDir returns the XDG data directory for digestfetch.
// On Linux: ~/.local/share/digestfetch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for digestfetch.
// On Linux: ~/.config/digestfetch
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first problem found.
func (c *Config) Validate() error {
	if c.Username == "" {
		return ErrNoUsername
	}
	if c.Password == "" {
		return ErrNoPassword
	}
	if c.OutDir == "" {
		return ErrNoOutDir
	}
	if c.LoginURL == "" || c.ArchiveURL == "" {
		return ErrNoArchiveURL
	}
	if c.ListMode != ListModeIndex && c.ListMode != ListModeProbe {
		return ErrInvalidListMode
	}
	if c.ListMode == ListModeProbe && c.StartYear <= 0 {
		return ErrInvalidStartYear
	}
	if c.FailurePolicy != FailurePolicySkip && c.FailurePolicy != FailurePolicyAbort {
		return ErrInvalidFailurePolicy
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}
