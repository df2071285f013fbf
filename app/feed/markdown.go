package feed

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/width"
)

const (
	UnknownTime     = "未知时间"
	UnknownSubGroup = "未知"
)

var (
	subGroupPattern        = regexp.MustCompile(`^\[([^\]]+)\]`)
	bracketFileSizePattern = regexp.MustCompile(`(?i)\[([^\]]*[GMK]B[^\]]*)\]`)
)

// SubGroup returns the release group from a "[group] ..." title.
func SubGroup(title string) string {
	match := subGroupPattern.FindStringSubmatch(title)
	if match == nil {
		return UnknownSubGroup
	}
	return match[1]
}

// BracketFileSize finds a "[1.2GB]" style size in a title or description.
// Fullwidth forms such as "［１．２ＧＢ］" are folded to ASCII.
func BracketFileSize(text string) string {
	match := bracketFileSizePattern.FindStringSubmatch(width.Fold.String(text))
	if match == nil {
		return ""
	}
	return match[1]
}

// FormatDate renders a timestamp as "2006/01/02 15:04" local time, or the
// unknown sentinel for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return UnknownTime
	}
	return t.In(time.Local).Format("2006/01/02 15:04")
}

func DetailMarkdown(item Item) string {
	var b strings.Builder

	if item.CoverURL != "" {
		fmt.Fprintf(&b, "![封面](%s)\n\n", item.CoverURL)
	}

	fmt.Fprintf(&b, "# %s\n\n", item.DisplayName)
	fmt.Fprintf(&b, "**更新时间**: %s\n\n", FormatDate(item.PublishedAt))

	switch {
	case item.FileSize != "":
		fmt.Fprintf(&b, "**文件大小**: %s\n\n", item.FileSize)
	case item.ListedSize != "":
		fmt.Fprintf(&b, "**文件大小**: %s\n\n", item.ListedSize)
	case item.EnclosureLength > 0:
		fmt.Fprintf(&b, "**文件大小**: %s\n\n", humanize.IBytes(uint64(item.EnclosureLength)))
	}

	b.WriteString("---\n")
	fmt.Fprintf(&b, "**原始文件**: %s", item.Title)

	return b.String()
}
