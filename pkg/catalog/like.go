package catalog

import (
	"os"
	"strings"
)

// LikeEscape is the escape character used with EscapeLike patterns.
const LikeEscape = "!"

var likeReplacer = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// EscapeLike escapes s for literal use in a LIKE pattern with ESCAPE '!'.
func EscapeLike(s string) string {
	return likeReplacer.Replace(s)
}

// PrefixPattern returns a LIKE pattern matching every path inside dir.
func PrefixPattern(dir string) string {
	if !strings.HasSuffix(dir, string(os.PathSeparator)) {
		dir += string(os.PathSeparator)
	}
	return EscapeLike(dir) + "%"
}
