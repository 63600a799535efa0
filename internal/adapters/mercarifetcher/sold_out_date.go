package mercarifetcher

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kuroweb/crawlflare/internal/core/port"
)

var (
	selDetailContainer = port.CSS("[data-testid='item-detail-container']")
	selSecondaryText   = port.CSS("[class*='merText'][class*='body'][class*='secondary']")

	daysAgoPattern   = regexp.MustCompile(`(\d+)日前`)
	monthsAgoPattern = regexp.MustCompile(`(\d+)か月前`)
)

const (
	unitMinutes  = "分前"
	unitHours    = "時間前"
	unitDays     = "日前"
	unitMonths   = "か月前"
	unitHalfYear = "半年以上前"
)

var relativeUnits = []string{unitMinutes, unitHours, unitDays, unitMonths, unitHalfYear}

// resolveSoldOutDate scans the secondary texts of the item container for the
// first relative time phrase. Without a container or a phrase it returns now.
func resolveSoldOutDate(page port.PagePort, now time.Time) time.Time {
	container, ok := page.Find(selDetailContainer)
	if !ok {
		return now
	}
	for _, el := range container.FindAll(selSecondaryText) {
		text := el.Text()
		if !hasRelativeUnit(text) {
			continue
		}
		return parseRelativeDate(text, now)
	}
	return now
}

func hasRelativeUnit(text string) bool {
	for _, unit := range relativeUnits {
		if strings.Contains(text, unit) {
			return true
		}
	}
	return false
}

// parseRelativeDate converts a phrase such as "3日前" to the start of the
// matching day in now's location. Minutes and hours collapse onto today.
func parseRelativeDate(text string, now time.Time) time.Time {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	switch {
	case strings.Contains(text, unitMinutes), strings.Contains(text, unitHours):
		return today
	case strings.Contains(text, unitDays):
		if n, ok := leadingCount(daysAgoPattern, text); ok {
			return today.AddDate(0, 0, -n)
		}
	case strings.Contains(text, unitMonths):
		if n, ok := leadingCount(monthsAgoPattern, text); ok {
			return today.AddDate(0, -n, 0)
		}
	case strings.Contains(text, unitHalfYear):
		return today.AddDate(0, -6, 0)
	}
	return today
}

func leadingCount(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
