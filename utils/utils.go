package utils

import (
	"fmt"
	"strings"
)

func UrlQuery(s string) string { return strings.ReplaceAll(s, " ", "+") }

func Str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// ExcludeQuery appends -site: operators so already-used hosts are not
// surfaced again.
func ExcludeQuery(q string, hosts []string) string {
	if len(hosts) == 0 {
		return q
	}
	var b strings.Builder
	b.WriteString(q)
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		b.WriteString(" -site:")
		b.WriteString(h)
	}
	return b.String()
}
