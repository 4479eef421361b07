package slug

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that carry no combining mark under NFKD and therefore survive
// accent stripping.
var letterReplacer = strings.NewReplacer(
	"ı", "i",
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"ø", "o",
	"đ", "d",
	"ð", "d",
	"ł", "l",
	"þ", "th",
)

// ErrEmptySlug is returned when a name contains no characters that survive
// slugging, for example "!!!".
var ErrEmptySlug = apperrors.InvalidInput("name must contain at least one letter or digit")

// ExistsFunc reports whether a slug is already taken in the caller's scope.
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// Generate creates a URL-friendly slug from the given name. Accented and
// Turkish letters are transliterated to ASCII, every other run of
// non-alphanumerics becomes a single hyphen.
//
// Examples:
//   - "Kadın Giyim" → "kadin-giyim"
//   - "Crème Brûlée" → "creme-brulee"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = letterReplacer.Replace(s)

	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}

	s = slugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// GenerateUnique returns the first unused slug among base, base-1, base-2, …
// where base is Generate(name). exists is consulted once per candidate, in
// order. The store's unique constraint stays authoritative: a slug returned
// here can still lose a race and the caller must handle that.
func GenerateUnique(ctx context.Context, name string, exists ExistsFunc) (string, error) {
	base := Generate(name)
	if base == "" {
		return "", ErrEmptySlug
	}

	candidate := base
	for counter := 1; ; counter++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(counter)
	}
}

// IsEmptySlug reports whether err is ErrEmptySlug.
func IsEmptySlug(err error) bool {
	return errors.Is(err, ErrEmptySlug)
}
