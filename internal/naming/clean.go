package naming

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// FallbackName replaces a stem that cleans down to nothing.
const FallbackName = "converted_file"

// MaxNameLength caps a cleaned stem, in characters.
const MaxNameLength = 200

// cjkReplacer handles punctuation that compatibility folding leaves alone or
// folds to something we would rather drop.
var cjkReplacer = strings.NewReplacer(
	"【", "[", "】", "]",
	"？", "", "！", "", "；", "", "、", "",
	"：", "-", "～", "-",
	"，", ",", "。", ".",
	"…", "...", "—", "-", "–", "-",
	"‘", "'", "’", "'", "“", "\"", "”", "\"",
)

// illegalReplacer removes characters Windows rejects in file names.
var illegalReplacer = strings.NewReplacer(
	"<", "", ">", "", "\"", "", "?", "", "*", "", "\\", "",
	":", "-", "|", "-", "/", "-",
)

var (
	reSpaces = regexp.MustCompile(`\s+`)
	reDashes = regexp.MustCompile(`[-_]+`)
	reDots   = regexp.MustCompile(`\.+`)
)

// CleanName makes a file stem safe on every common filesystem. Fullwidth
// forms are folded to ASCII, illegal characters dropped or replaced, runs of
// spaces, dashes/underscores and dots collapsed, and the result trimmed and
// capped at MaxNameLength characters.
func CleanName(stem string) string {
	s := cjkReplacer.Replace(stem)
	s = norm.NFKC.String(s)
	s = illegalReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)

	s = reSpaces.ReplaceAllString(s, " ")
	s = reDashes.ReplaceAllString(s, "-")
	s = reDots.ReplaceAllString(s, ".")
	s = strings.Trim(s, " .-_")

	if s == "" {
		return FallbackName
	}
	if r := []rune(s); len(r) > MaxNameLength {
		s = strings.TrimRight(string(r[:MaxNameLength]), " .")
	}
	return s
}
