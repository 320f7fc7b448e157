package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// dateScanLimit bounds date extraction to the head of a document, where
// effective-date boilerplate lives.
const dateScanLimit = 2000

const (
	minYear = 2000
	maxYear = 2030
)

// datePatterns are tried in order; each captures year, month and day.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:生效|施行|实施|执行)日期\s*[:：]?\s*(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`),
	regexp.MustCompile(`自\s*(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日\s*(?:起|开始)\s*(?:施行|实施|执行|生效)`),
	regexp.MustCompile(`(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日\s*起\s*(?:施行|实施|执行|生效)`),
	regexp.MustCompile(`(?:生效|施行|实施|执行)日期\s*[:：]?\s*(\d{4})[-./](\d{1,2})[-./](\d{1,2})`),
	regexp.MustCompile(`自\s*(\d{4})[-./](\d{1,2})[-./](\d{1,2})\s*(?:起|开始)`),
	regexp.MustCompile(`(\d{4})[-./](\d{1,2})[-./](\d{1,2})\s*起\s*(?:施行|实施|执行|生效)`),
}

// ExtractEffectiveDate returns the first structurally valid effective date
// found in the first 2000 characters, formatted YYYY-MM-DD.
func ExtractEffectiveDate(text string) (string, bool) {
	head := []rune(text)
	if len(head) > dateScanLimit {
		head = head[:dateScanLimit]
	}
	scan := string(head)

	for _, re := range datePatterns {
		for _, m := range re.FindAllStringSubmatch(scan, -1) {
			y, _ := strconv.Atoi(m[1])
			mo, _ := strconv.Atoi(m[2])
			d, _ := strconv.Atoi(m[3])
			if ValidDate(y, mo, d) {
				return fmt.Sprintf("%04d-%02d-%02d", y, mo, d), true
			}
		}
	}
	return "", false
}

// ValidDate reports whether the date lies in 2000-2030 and exists on the calendar.
func ValidDate(year, month, day int) bool {
	if year < minYear || year > maxYear {
		return false
	}
	if month < 1 || month > 12 {
		return false
	}
	return day >= 1 && day <= daysIn(year, month)
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
