package config

// ArchiveConfig describes one mailing-list archive in the config file.
// Zero values mean "keep the built-in default".
type ArchiveConfig struct {
	// LoginURL receives the login form submission.
	LoginURL string `yaml:"login_url,omitempty"`

	// ArchiveURL is the archive index and the base for digest URLs.
	ArchiveURL string `yaml:"archive_url,omitempty"`

	// UsernameField and PasswordField override the login form field names.
	UsernameField string `yaml:"username_field,omitempty"`
	PasswordField string `yaml:"password_field,omitempty"`

	// Username and Password are optional stored credentials.
	// Flags take precedence over them.
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// Mode is "index" or "probe".
	Mode string `yaml:"mode,omitempty"`

	// StartYear is the first year generated in probe mode.
	StartYear int `yaml:"start_year,omitempty"`

	// DigestPath is the digest location template relative to ArchiveURL.
	DigestPath string `yaml:"digest_path,omitempty"`

	// FilenamePrefix is a pointer so that an explicit empty prefix can be configured.
	FilenamePrefix *string `yaml:"filename_prefix,omitempty"`

	// Extension is the output file extension including the dot.
	Extension string `yaml:"extension,omitempty"`

	// MissingMarker is a pointer so that marker detection can be disabled with "".
	MissingMarker *string `yaml:"missing_marker,omitempty"`

	// NormalizeUTF8 transcodes digests to UTF-8.
	NormalizeUTF8 bool `yaml:"normalize_utf8,omitempty"`

	// MaxBodySize limits a single digest in bytes. Zero keeps the default.
	MaxBodySize int64 `yaml:"max_body_size,omitempty"`

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// OnError is the failure policy, "skip" or "abort".
	OnError string `yaml:"on_error,omitempty"`

	// Filter is a boolean expression selecting references to download.
	Filter string `yaml:"filter,omitempty"`
}

// File represents the structure of the .digestfetch configuration file.
type File struct {
	// Lists maps a profile name to its archive configuration.
	Lists map[string]ArchiveConfig `yaml:"lists,omitempty"`

	// Defaults is applied before any list-specific configuration.
	Defaults ArchiveConfig `yaml:"defaults,omitempty"`
}

// GetArchiveConfig returns the configuration for a named list merged over the defaults.
// An empty or unknown name yields the defaults alone.
func (cf *File) GetArchiveConfig(name string) ArchiveConfig {
	result := cf.Defaults

	lc, ok := cf.Lists[name]
	if !ok {
		return result
	}

	if lc.LoginURL != "" {
		result.LoginURL = lc.LoginURL
	}
	if lc.ArchiveURL != "" {
		result.ArchiveURL = lc.ArchiveURL
	}
	if lc.UsernameField != "" {
		result.UsernameField = lc.UsernameField
	}
	if lc.PasswordField != "" {
		result.PasswordField = lc.PasswordField
	}
	if lc.Username != "" {
		result.Username = lc.Username
	}
	if lc.Password != "" {
		result.Password = lc.Password
	}
	if lc.Mode != "" {
		result.Mode = lc.Mode
	}
	if lc.StartYear != 0 {
		result.StartYear = lc.StartYear
	}
	if lc.DigestPath != "" {
		result.DigestPath = lc.DigestPath
	}
	if lc.FilenamePrefix != nil {
		result.FilenamePrefix = lc.FilenamePrefix
	}
	if lc.Extension != "" {
		result.Extension = lc.Extension
	}
	if lc.MissingMarker != nil {
		result.MissingMarker = lc.MissingMarker
	}
	if lc.NormalizeUTF8 {
		result.NormalizeUTF8 = true
	}
	if lc.MaxBodySize != 0 {
		result.MaxBodySize = lc.MaxBodySize
	}
	if len(lc.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(lc.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		for k, v := range lc.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}
	if lc.OnError != "" {
		result.OnError = lc.OnError
	}
	if lc.Filter != "" {
		result.Filter = lc.Filter
	}

	return result
}

// HasList reports whether the file defines a profile with the given name.
func (cf *File) HasList(name string) bool {
	_, ok := cf.Lists[name]
	return ok
}
