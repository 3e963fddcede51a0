package buildconfig

import "strings"

// Output filename categories.
const (
	CategoryScript = "js"
	CategoryStyle  = "css"
)

// Naming tokens.
const (
	TokenHash = "hash"
	TokenName = "name"
)

// NamingToken returns the filename token for mode: a content hash in production,
// the logical name otherwise.
func NamingToken(mode Mode) string {
	if mode.IsProduction() {
		return TokenHash
	}
	return TokenName
}

// NamingRule builds "<category>/[<token>].<ext>".
func NamingRule(category, ext string, mode Mode) string {
	return category + "/[" + NamingToken(mode) + "]." + ext
}

// SplitNamingRule breaks a naming rule into its directory, bracketed token and
// extension, so "js/[hash].js" gives ("js", "hash", "js").
func SplitNamingRule(rule string) (dir, token, ext string) {
	dir, rest, ok := strings.Cut(rule, "/[")
	if !ok {
		return "", "", ""
	}
	token, ext, _ = strings.Cut(rest, "].")
	return dir, token, ext
}
