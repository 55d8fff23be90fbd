package reminder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Accepted syntaxes, tried in order. The first that matches decides the
// result; a range failure never falls through to a later syntax.
var timeSyntaxes = []*regexp.Regexp{
	regexp.MustCompile(`^(\d+)时(\d+)分`),
	regexp.MustCompile(`^(\d{1,2}):(\d{2})`),
	regexp.MustCompile(`^(\d{2})(\d{2})$`),
}

// ParseTime parses a time of day such as "8时30分", "08:30" or "0830".
func ParseTime(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	for _, re := range timeSyntaxes {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		h, herr := strconv.Atoi(m[1])
		mi, merr := strconv.Atoi(m[2])
		if herr != nil || merr != nil || h < 0 || h >= 24 || mi < 0 || mi >= 60 {
			return 0, 0, ErrInvalidTimeRange
		}
		return h, mi, nil
	}
	return 0, 0, ErrInvalidTimeFormat
}

// FormatTime renders hour and minute in the normalized "H时M分" form.
func FormatTime(hour, minute int) string {
	return fmt.Sprintf("%d时%d分", hour, minute)
}
