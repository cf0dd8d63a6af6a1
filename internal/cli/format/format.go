// Package format renders portal values for the terminal and for CSV exports.
package format

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Unknown is printed for missing or unparseable values
const Unknown = "unknown"

// portal timestamps come back in any of these layouts
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

const (
	timeLayout = "2006-01-02 15:04:05"
	dateLayout = "2006-01-02"
)

// ParseTime parses a portal timestamp
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTime renders a timestamp as "2006-01-02 15:04:05"
func FormatTime(s string) string {
	t, ok := ParseTime(s)
	if !ok {
		return Unknown
	}
	return t.Format(timeLayout)
}

// FormatDate renders the date part of a timestamp
func FormatDate(s string) string {
	t, ok := ParseTime(s)
	if !ok {
		return Unknown
	}
	return t.Format(dateLayout)
}

// Ago renders a unix timestamp relative to now ("3 minutes ago")
func Ago(unix float64) string {
	if unix <= 0 {
		return Unknown
	}
	sec, frac := math.Modf(unix)
	return humanize.Time(time.Unix(int64(sec), int64(frac*1e9)))
}

// FileSize renders a byte count in binary units ("1.5 KiB")
func FileSize(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// Quota renders a limit, where -1 means unlimited
func Quota(limit int) string {
	if limit < 0 {
		return "unlimited"
	}
	return strconv.Itoa(limit)
}

// UsagePercentage returns the remaining share of a quota, 0-100.
// Unlimited (-1) and zero quotas report 0.
func UsagePercentage(total, used int) int {
	if total == -1 || total == 0 {
		return 0
	}
	remaining := max(0, total-used)
	pct := int(math.Round(float64(remaining) / float64(total) * 100))
	return max(0, min(100, pct))
}

// Level grades how much of a quota is left
type Level int

const (
	LevelHealthy Level = iota
	LevelWarning
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelHealthy:
		return "healthy"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return Unknown
	}
}

// ProgressLevel grades remaining quota: above 60% healthy, above 30% warning, else critical
func ProgressLevel(total, used int) Level {
	if total == -1 || total == 0 {
		return LevelHealthy
	}
	share := float64(max(0, total-used)) / float64(total)
	switch {
	case share > 0.6:
		return LevelHealthy
	case share > 0.3:
		return LevelWarning
	default:
		return LevelCritical
	}
}

var operationNames = map[int]string{
	1: "image recognition",
	2: "batch processing",
	3: "realtime detection",
}

// OperationName names a user log class
func OperationName(class int) string {
	if name, ok := operationNames[class]; ok {
		return name
	}
	return "unknown operation"
}

// LogType classifies an admin log line by its verb: success, danger, warning or info
func LogType(text string) string {
	switch {
	case strings.Contains(text, "创建"), strings.Contains(text, "添加"):
		return "success"
	case strings.Contains(text, "删除"), strings.Contains(text, "封禁"):
		return "danger"
	case strings.Contains(text, "修改"), strings.Contains(text, "更新"):
		return "warning"
	default:
		return "info"
	}
}

var logActions = []struct {
	keyword string
	action  string
}{
	{"创建", "create"},
	{"删除", "delete"},
	{"修改", "modify"},
	{"封禁", "ban"},
	{"解封", "unban"},
	{"登录", "login"},
}

// LogAction extracts the action from an admin log line
func LogAction(text string) string {
	for _, a := range logActions {
		if strings.Contains(text, a.keyword) {
			return a.action
		}
	}
	return "operation"
}

// Paginate returns the 1-based page of items. Out of range pages are empty.
func Paginate[T any](items []T, page, size int) []T {
	if page < 1 || size < 1 {
		return nil
	}
	start := (page - 1) * size
	if start >= len(items) {
		return nil
	}
	end := min(start+size, len(items))
	return items[start:end]
}
