package utils

import "strings"

// StringList is a repeatable string flag.
type StringList []string

func (l *StringList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *StringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}
