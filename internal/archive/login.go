package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"
)

// Authenticate submits the login form and returns a session carrying the
// issued cookies. It makes exactly one attempt.
//
// Mailman answers a failed login with status 200 and the login form again,
// so a password input in the response is treated as rejected credentials.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, &AuthError{URL: c.loginURL, Err: ErrMissingCredentials}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, &AuthError{URL: c.loginURL, Err: err}
	}
	hc := *c.httpClient
	hc.Jar = jar

	form := url.Values{}
	form.Set(c.usernameField, username)
	form.Set(c.passwordField, password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{URL: c.loginURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.Debug("submitting login form", "url", c.loginURL, "username", username)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &AuthError{URL: c.loginURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, pageBodyLimit))
	if err != nil {
		return nil, &AuthError{URL: c.loginURL, Err: fmt.Errorf("failed to read login response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{URL: c.loginURL, Err: ErrInvalidCredentials}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &AuthError{URL: c.loginURL, Err: statusError(resp.StatusCode, resp.Status)}
	}

	if hasLoginForm(body) {
		return nil, &AuthError{URL: c.loginURL, Err: ErrInvalidCredentials}
	}

	c.logger.Debug("login accepted", "url", c.loginURL, "jar_entries", len(jar.Cookies(resp.Request.URL)))

	return &Session{
		client:   &hc,
		username: username,
	}, nil
}

// hasLoginForm reports whether an HTML page contains a password input.
// Unparsable content is treated as not being a login form.
func hasLoginForm(body []byte) bool {
	if !bytes.Contains(bytes.ToLower(body), []byte("password")) {
		return false
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return false
	}

	found := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode && n.Data == "input" &&
			strings.EqualFold(getAttr(n, "type"), "password") {
			found = true
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return found
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
