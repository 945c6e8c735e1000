package tweets

import (
	"regexp"
	"strings"
)

var (
	labelPrefix  = regexp.MustCompile(`^(Setback|Update|Progress|Status):\s*`)
	dateStamp    = regexp.MustCompile(`^\[\s*\d{4}(-\d{2}-\d{2})?\s*\|\s*Age\s*[\d.]+\s*\]\s*`)
	boldEmphasis = regexp.MustCompile(`\*\*([^*]*)\*\*`)
	softEmphasis = regexp.MustCompile(`\*([^*]*)\*`)
	multiSpace   = regexp.MustCompile(`[ \t]+`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

// Cleanup normalizes generated post text: editorial label prefixes and
// redundant date stamps go, markdown emphasis is unwrapped, whitespace is
// collapsed. Applied to both fresh generations and queued entries so older
// queue contents get the same treatment.
func Cleanup(content string) string {
	content = strings.TrimSpace(content)
	content = strings.Trim(content, `"`)
	content = dateStamp.ReplaceAllString(content, "")
	content = labelPrefix.ReplaceAllString(content, "")
	content = boldEmphasis.ReplaceAllString(content, "$1")
	content = softEmphasis.ReplaceAllString(content, "$1")
	content = multiSpace.ReplaceAllString(content, " ")
	content = multiNewline.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
