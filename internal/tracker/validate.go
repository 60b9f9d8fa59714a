package tracker

import (
	"regexp"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	urlPattern   = regexp.MustCompile(`^https?://(www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b([-a-zA-Z0-9()@:%_+.~#?&/=]*)$`)
)

// ValidEmailAddress reports whether s looks like an email address.
func ValidEmailAddress(s string) bool {
	return s != "" && emailPattern.MatchString(s)
}

// ValidURL reports whether s looks like an absolute http(s) URL.
func ValidURL(s string) bool {
	return s != "" && urlPattern.MatchString(s)
}
