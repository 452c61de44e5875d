package supplier

import (
	"regexp"
	"strings"

	"github.com/maltedev/chem-supplier-scraper/internal/textnorm"
)

var popupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`idx=(\d+)`),
	regexp.MustCompile(`idx['"]?\s*[:,]\s*['"]?(\d+)`),
	regexp.MustCompile(`(?i)pop\w*\(\s*['"]?(\d+)`),
}

// PopupID extracts the popup identifier from anchor onclick/href text.
func PopupID(ref string) (string, bool) {
	for _, p := range popupPatterns {
		if m := p.FindStringSubmatch(ref); len(m) == 2 {
			return m[1], true
		}
	}
	return "", false
}

// DefaultLabelKeywords is the hazard and regulation vocabulary used to keep
// popup lines that are actual regulatory labels.
var DefaultLabelKeywords = []string{
	"유독", "유해", "위험", "독성", "허가", "제한", "금지", "사고대비",
	"관리대상", "특별관리", "작업환경", "특수건강", "노출기준", "마약", "향정",
	"규제", "화학물질", "산업안전", "PSM", "GHS",
}

// FilterLabels keeps the lines that contain at least one keyword, collapsed
// and de-duplicated in first-seen order. An empty keyword set keeps all lines.
func FilterLabels(lines []string, keywords []string) []string {
	if len(keywords) == 0 {
		return textnorm.Dedup(lines)
	}

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		for _, kw := range keywords {
			if kw != "" && strings.Contains(line, kw) {
				kept = append(kept, line)
				break
			}
		}
	}
	return textnorm.Dedup(kept)
}
