package textutil

import (
	"fmt"
	"strings"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
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
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename and
// collapses runs of whitespace. Control characters are dropped.
func SanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = fileNameReplacer.Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// TrackFileName builds "NN - Title.ext", or "Track NN.ext" when the title is
// empty after sanitizing.
func TrackFileName(number int, title, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	title = SanitizeFileName(title)
	title = strings.Trim(title, ". ")
	if title == "" {
		return fmt.Sprintf("Track %02d.%s", number, ext)
	}
	return fmt.Sprintf("%02d - %s.%s", number, title, ext)
}
