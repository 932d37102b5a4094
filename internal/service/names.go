package service

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/oklog/ulid/v2"
)

const (
	maxURLLength  = 2048
	maxNameLength = 50
	maxTextLength = 200
	maxIconLength = 2048

	slugLength     = 6
	slugAlphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
	linkIDLength   = 11
	maxSlugRetries = 3
)

// urlPattern accepts an optional http(s) scheme, a host with at least one
// alphabetic label of two or more characters, and optional port, path,
// query, and fragment.
var urlPattern = regexp.MustCompile(
	`^(?i)(https?://)?(www\.)?[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*\.[a-z]{2,}(:\d{1,5})?(/[^\s?#]*)?(\?[^\s#]*)?(#\S*)?$`,
)

// namePattern is the shape of every slug and page name after normalization.
var namePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// reservedNames collide with fixed routes.
var reservedNames = map[string]struct{}{
	"api":        {},
	"go":         {},
	"healthz":    {},
	"readyz":     {},
	"metrics":    {},
	"shortlinks": {},
	"page":       {},
	"init":       {},
	"user":       {},
	"users":      {},
	"analytics":  {},
	"admin":      {},
	"static":     {},
	"favicon":    {},
}

// NormalizeName trims and lower-cases a user-supplied name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsReservedName reports whether name is claimed by a route.
func IsReservedName(name string) bool {
	_, ok := reservedNames[name]
	return ok
}

var (
	errReservedName = validation.NewError("validation_name_reserved", "is reserved")
	errBadURL       = validation.NewError("validation_url_invalid", "must be a valid URL")
)

// nameRules validates an already-normalized name.
var nameRules = []validation.Rule{
	validation.Required,
	validation.Length(1, maxNameLength),
	validation.Match(namePattern).Error("may only contain letters, digits, '-' and '_'"),
	validation.By(func(v any) error {
		if s, _ := v.(string); IsReservedName(s) {
			return errReservedName
		}
		return nil
	}),
}

// urlRules validates a link or shortlink destination.
var urlRules = []validation.Rule{
	validation.Required,
	validation.Length(1, maxURLLength),
	validation.By(func(v any) error {
		iv, _ := validation.Indirect(v)
		s, _ := iv.(string)
		if s != "" && !urlPattern.MatchString(s) {
			return errBadURL
		}
		return nil
	}),
}

// IsValidURL reports whether s is an acceptable destination URL.
func IsValidURL(s string) bool {
	return validation.Validate(s, urlRules...) == nil
}

// newSlug returns a random lowercase URL-safe slug.
func newSlug() (string, error) {
	return gonanoid.Generate(slugAlphabet, slugLength)
}

// newLinkID returns a random identifier for a LinkItem.
func newLinkID() (string, error) {
	return gonanoid.New(linkIDLength)
}

// generateULID creates a new ULID string.
func generateULID() string {
	return ulid.Make().String()
}
