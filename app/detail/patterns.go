package detail

import (
	"regexp"
)

// The detail page is matched with narrow patterns rather than parsed; a markup
// change on the origin shows up as empty fields, never as an error.
var (
	// style="background-image: url('/images/cover.jpg')" on the .bangumi-poster element
	coverPattern = regexp.MustCompile(`class="bangumi-poster[^"]*"[^>]*style="[^"]*background-image:\s*url\(['"]?([^'")\s]+)['"]?\)`)

	// class="bangumi-info">文件大小：1.2GB<
	fileSizePattern = regexp.MustCompile(`class="bangumi-info"[^>]*>文件大小：([^<]+)<`)

	// 32-40 character info hash (hex or base32), then the rest of the query
	magnetPattern = regexp.MustCompile(`magnet:\?xt=urn:btih:[a-zA-Z0-9]{32,40}[^"'<\s]*`)
)
