package detail

import (
	"strings"
)

// Record holds whatever the detail page yielded. Empty fields mean the pattern
// did not match.
type Record struct {
	CoverURL string
	FileSize string
	Magnet   string
}

type Extractor struct {
	origin string
}

// NewExtractor builds an extractor that resolves site-relative URLs against origin.
func NewExtractor(origin string) *Extractor {
	return &Extractor{origin: strings.TrimRight(origin, "/")}
}

func (e *Extractor) Run(body string) Record {
	return Record{
		CoverURL: e.cover(body),
		FileSize: fileSize(body),
		Magnet:   magnet(body),
	}
}

func (e *Extractor) cover(body string) string {
	match := coverPattern.FindStringSubmatch(body)
	if match == nil {
		return ""
	}
	return e.absolute(DecodeEntities(match[1]))
}

func (e *Extractor) absolute(ref string) string {
	switch {
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref
	case strings.HasPrefix(ref, "/"):
		return e.origin + ref
	default:
		return ref
	}
}

func fileSize(body string) string {
	match := fileSizePattern.FindStringSubmatch(body)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

func magnet(body string) string {
	match := magnetPattern.FindString(body)
	if match == "" {
		return ""
	}
	return DecodeEntities(match)
}
