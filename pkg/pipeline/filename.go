package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\s,']`)
	underscores = regexp.MustCompile(`_+`)
)

// reservedNames are device names Windows refuses as file names.
var reservedNames = func() map[string]bool {
	m := map[string]bool{"CON": true, "PRN": true, "AUX": true, "NUL": true}
	for i := 1; i <= 9; i++ {
		m[fmt.Sprintf("COM%d", i)] = true
		m[fmt.Sprintf("LPT%d", i)] = true
	}
	return m
}()

// SanitizeFilename makes name safe as a file name on every platform.
func SanitizeFilename(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	s = strings.Trim(s, ". ")
	s = underscores.ReplaceAllString(s, "_")
	if reservedNames[strings.ToUpper(s)] {
		s = "_" + s
	}
	if s == "" {
		return "unnamed"
	}
	return s
}

// Filename returns "<city>_<theme>_<YYYYmmdd_HHMMSS>.<format>".
func Filename(city, theme, format string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s.%s",
		SanitizeFilename(strings.ToLower(city)),
		SanitizeFilename(strings.ToLower(theme)),
		at.Format("20060102_150405"),
		strings.ToLower(format))
}
