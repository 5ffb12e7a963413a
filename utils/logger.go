package utils

import (
	"fmt"
	"io"
)

// Logger writes decode traces for a single resource. A nil *Logger discards everything.
type Logger struct {
	io.Writer
}

func (l *Logger) Println(a ...interface{}) {
	if l != nil && l.Writer != nil {
		fmt.Fprintln(l, a...)
	}
}

func (l *Logger) Printf(format string, a ...interface{}) {
	if l != nil && l.Writer != nil {
		fmt.Fprintf(l, format+"\n", a...)
	}
}
