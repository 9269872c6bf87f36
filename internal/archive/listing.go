package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// Listing is the finite set of references available in the archive.
// All can be ranged over any number of times and always yields the same
// references in ascending order.
type Listing struct {
	refs []Reference

	// first and last bound a generated listing when refs is nil.
	first, last Reference
	generated   bool
}

// All returns the references in ascending order.
// Generated (probe mode) listings compute each month on demand.
func (l *Listing) All() iter.Seq[Reference] {
	if l.generated {
		return func(yield func(Reference) bool) {
			for r := l.first; !l.last.Before(r); r = r.Next() {
				if !yield(r) {
					return
				}
			}
		}
	}
	return slices.Values(l.refs)
}

// Len returns the number of references.
func (l *Listing) Len() int {
	if l.generated {
		if l.last.Before(l.first) {
			return 0
		}
		return (l.last.Year-l.first.Year)*12 + int(l.last.Month) - int(l.first.Month) + 1
	}
	return len(l.refs)
}

// ListDigests enumerates the digests reachable with the session.
// In index mode the archive index page is requested and parsed; in probe
// mode the months from the start year to the current month are generated
// without a request.
func (c *Client) ListDigests(ctx context.Context, s *Session) (*Listing, error) {
	if s == nil {
		return nil, &ListError{URL: c.archiveURL, Err: ErrNilSession}
	}

	if c.listMode == ListModeProbe {
		now := c.now()
		l := &Listing{
			first:     NewReference(c.startYear, 1),
			last:      NewReference(now.Year(), now.Month()),
			generated: true,
		}
		c.logger.Debug("generated probe listing", "first", l.first, "last", l.last, "count", l.Len())
		return l, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.archiveURL, nil)
	if err != nil {
		return nil, &ListError{URL: c.archiveURL, Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &ListError{URL: c.archiveURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &ListError{URL: c.archiveURL, Err: ErrSessionRejected}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &ListError{URL: c.archiveURL, Err: statusError(resp.StatusCode, resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, pageBodyLimit))
	if err != nil {
		return nil, &ListError{URL: c.archiveURL, Err: fmt.Errorf("failed to read listing: %w", err)}
	}

	if hasLoginForm(body) {
		return nil, &ListError{URL: c.archiveURL, Err: ErrSessionRejected}
	}

	refs, err := parseIndex(body, c.archiveURL)
	if err != nil {
		return nil, &ListError{URL: c.archiveURL, Err: err}
	}
	if len(refs) == 0 {
		return nil, &ListError{URL: c.archiveURL, Err: ErrUnrecognizedListing}
	}

	c.logger.Debug("parsed archive index", "url", c.archiveURL, "count", len(refs))
	return &Listing{refs: refs}, nil
}

// parseIndex extracts the month references linked from an archive index.
// A link counts when, resolved against the index URL, its first path
// segment below the index directory is YYYY-MM ("2024-06/",
// "2024-06/2024-06f.html", "2024-06/index.html"). The result is sorted
// and free of duplicates.
func parseIndex(body []byte, indexURL string) ([]Reference, error) {
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("invalid archive URL: %w", err)
	}
	baseDir := base.Path
	if !strings.HasSuffix(baseDir, "/") {
		baseDir = baseDir[:strings.LastIndex(baseDir, "/")+1]
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}

	seen := make(map[Reference]bool)
	refs := make([]Reference, 0)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if ref, ok := monthFromHref(base, baseDir, getAttr(n, "href")); ok && !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)

	slices.SortFunc(refs, func(a, b Reference) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		default:
			return 0
		}
	})
	return refs, nil
}

// monthFromHref returns the reference a link points to, if any.
func monthFromHref(base *url.URL, baseDir, href string) (Reference, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return Reference{}, false
	}
	u, err := url.Parse(href)
	if err != nil {
		return Reference{}, false
	}
	resolved := base.ResolveReference(u)
	if !strings.EqualFold(resolved.Host, base.Host) {
		return Reference{}, false
	}
	rest, ok := strings.CutPrefix(resolved.Path, baseDir)
	if !ok {
		return Reference{}, false
	}
	segment, _, _ := strings.Cut(rest, "/")
	ref, err := ParseReference(segment)
	if err != nil {
		return Reference{}, false
	}
	return ref, true
}
