package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Digest is the raw content of one monthly digest.
type Digest struct {
	Ref         Reference
	URL         string
	ContentType string
	Body        []byte
}

// DigestURL returns the URL a reference is fetched from.
func (c *Client) DigestURL(ref Reference) (string, error) {
	base, err := url.Parse(c.archiveURL)
	if err != nil {
		return "", fmt.Errorf("invalid archive URL: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	rel, err := url.Parse(ref.expand(c.digestPath))
	if err != nil {
		return "", fmt.Errorf("invalid digest path %q: %w", c.digestPath, err)
	}
	return base.ResolveReference(rel).String(), nil
}

// FetchDigest downloads the digest for ref.
//
// A 404 response or a short placeholder page containing the missing marker
// yields a FetchError wrapping ErrDigestMissing. Redirects to the login form
// yield ErrSessionRejected.
func (c *Client) FetchDigest(ctx context.Context, s *Session, ref Reference) (*Digest, error) {
	digestURL, err := c.DigestURL(ref)
	if err != nil {
		return nil, &FetchError{Ref: ref, URL: c.archiveURL, Err: err}
	}
	if s == nil {
		return nil, &FetchError{Ref: ref, URL: digestURL, Err: ErrNilSession}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, digestURL, nil)
	if err != nil {
		return nil, &FetchError{Ref: ref, URL: digestURL, Err: err}
	}

	c.logger.Debug("fetching digest", "ref", ref, "url", digestURL)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{Ref: ref, URL: digestURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &FetchError{Ref: ref, URL: digestURL, Err: ErrDigestMissing}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &FetchError{Ref: ref, URL: digestURL, Err: ErrSessionRejected}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &FetchError{Ref: ref, URL: digestURL, Err: statusError(resp.StatusCode, resp.Status)}
	}

	// Read one byte past the limit to tell "exactly at the limit" from "over".
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, &FetchError{Ref: ref, URL: digestURL, Err: fmt.Errorf("failed to read digest: %w", err)}
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, &FetchError{Ref: ref, URL: digestURL, Err: ErrBodyTooLarge}
	}

	if c.isPlaceholder(body) {
		return nil, &FetchError{Ref: ref, URL: digestURL, Err: ErrDigestMissing}
	}

	// An expired session gets the login page instead of the digest,
	// sometimes without any Content-Type.
	contentType := resp.Header.Get("Content-Type")
	if (contentType == "" || strings.Contains(contentType, "html")) && hasLoginForm(body) {
		return nil, &FetchError{Ref: ref, URL: digestURL, Err: ErrSessionRejected}
	}

	if c.normalizeUTF8 {
		body, err = toUTF8(body, contentType)
		if err != nil {
			return nil, &FetchError{Ref: ref, URL: digestURL, Err: err}
		}
	}

	finalURL := digestURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	c.logger.Debug("fetched digest", "ref", ref, "bytes", len(body), "content_type", contentType)

	return &Digest{
		Ref:         ref,
		URL:         finalURL,
		ContentType: contentType,
		Body:        body,
	}, nil
}

// isPlaceholder reports whether body is the short "does not exist" page
// the archive serves with status 200 for months without a digest.
func (c *Client) isPlaceholder(body []byte) bool {
	if c.missingMarker == "" || len(body) >= missingBodyLimit {
		return false
	}
	return bytes.Contains(body, []byte(c.missingMarker))
}
