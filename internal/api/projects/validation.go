package projects

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 500
	maxSlugLength        = 60
)

// ValidateName checks a project name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return errors.New("name must be 100 characters or less")
	}
	return nil
}

// ValidateDescription checks a project description.
func ValidateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > maxDescriptionLength {
		return errors.New("description must be 500 characters or less")
	}
	return nil
}

// Slugify turns a project name into a URL path segment: lowercase ASCII
// letters and digits separated by single hyphens. Accents are stripped.
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range norm.NFKD.String(name) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(unicode.ToLower(r))
		default:
			pendingHyphen = true
		}
		if b.Len() >= maxSlugLength {
			break
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		slug = "site"
	}
	return slug
}

// slugCandidate returns the n-th candidate for base: base, base-2, base-3...
func slugCandidate(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}
