package archive

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// refPattern matches the textual form of a reference.
var refPattern = regexp.MustCompile(`^(\d{4})-(0[1-9]|1[0-2])$`)

// Reference identifies one monthly digest.
type Reference struct {
	Year  int
	Month time.Month
}

// NewReference returns the reference for the given year and month.
func NewReference(year int, month time.Month) Reference {
	return Reference{Year: year, Month: month}
}

// ParseReference parses "YYYY-MM".
func ParseReference(s string) (Reference, error) {
	m := refPattern.FindStringSubmatch(s)
	if m == nil {
		return Reference{}, fmt.Errorf("invalid digest reference %q: want YYYY-MM", s)
	}
	year, _ := strconv.Atoi(m[1])  //nolint:errcheck // guaranteed digits by refPattern
	month, _ := strconv.Atoi(m[2]) //nolint:errcheck // guaranteed digits by refPattern
	return Reference{Year: year, Month: time.Month(month)}, nil
}

// String returns "YYYY-MM".
func (r Reference) String() string {
	return fmt.Sprintf("%04d-%02d", r.Year, int(r.Month))
}

// Before reports whether r is an earlier month than o.
func (r Reference) Before(o Reference) bool {
	if r.Year != o.Year {
		return r.Year < o.Year
	}
	return r.Month < o.Month
}

// Next returns the following month.
func (r Reference) Next() Reference {
	if r.Month == time.December {
		return Reference{Year: r.Year + 1, Month: time.January}
	}
	return Reference{Year: r.Year, Month: r.Month + 1}
}

// expand substitutes {ref}, {year} and {month} in a path template.
func (r Reference) expand(template string) string {
	return strings.NewReplacer(
		"{ref}", r.String(),
		"{year}", fmt.Sprintf("%04d", r.Year),
		"{month}", fmt.Sprintf("%02d", int(r.Month)),
	).Replace(template)
}

// Namer derives output filenames from references.
// The filename is a pure function of the reference, so a rerun writes the
// same file again instead of creating a second copy.
type Namer struct {
	Prefix    string
	Extension string
}

// Filename returns Prefix + "YYYY-MM" + Extension.
func (n Namer) Filename(r Reference) string {
	return n.Prefix + r.String() + n.Extension
}
