// Package textutil provides filename sanitization for user-supplied image
// names that end up as archive entries and remote asset paths.
package textutil

import "strings"

// fileNameReplacer replaces filesystem-unsafe characters. Path separators
// and colons become dashes so a hostile name cannot escape its folder;
// other unsafe characters are dropped.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// SanitizeFileName makes an uploaded image name safe to use as a single
// path segment. Returns fallback when the name sanitizes to nothing.
func SanitizeFileName(name, fallback string) string {
	name = strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(name)))
	name = strings.Trim(name, ".")
	if name == "" {
		return fallback
	}
	return name
}
