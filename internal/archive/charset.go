package archive

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// toUTF8 transcodes body to UTF-8.
// The encoding is taken from a BOM, the Content-Type header or a <meta>
// tag. Content that claims UTF-8 but is not valid UTF-8, and content with
// no declared encoding, is read as ISO-8859-1, which is what older Mailman
// archives serve.
func toUTF8(body []byte, contentType string) ([]byte, error) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	switch {
	case name == "utf-8" && utf8.Valid(body):
		return body, nil
	case name == "utf-8", !certain && name == "windows-1252":
		enc, name = charmap.ISO8859_1, "iso-8859-1"
	}

	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(body), enc.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s content: %w", name, err)
	}
	return out, nil
}
