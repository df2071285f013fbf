package detail

import (
	"html"
	"strings"
)

// DecodeEntities decodes named and numeric character references. &nbsp; becomes
// a plain space so it cannot leak into magnet parameters.
func DecodeEntities(text string) string {
	if !strings.Contains(text, "&") {
		return text
	}
	return html.UnescapeString(strings.ReplaceAll(text, "&nbsp;", " "))
}
