// FILE: crashwatch/src/cmd/crashwatch/output.go
package main

import (
	"fmt"
	"io"
	"os"
)

// Operator notices go to stderr so a report on stdout stays machine readable
var (
	noticeOut   io.Writer = os.Stderr
	quietNotice bool
)

// notice prints a status line unless -quiet was given
func notice(format string, args ...any) {
	if !quietNotice {
		fmt.Fprintf(noticeOut, format, args...)
	}
}

// fatal prints even in quiet mode, flushes the logger and exits
func fatal(code int, format string, args ...any) {
	fmt.Fprintf(noticeOut, format, args...)
	shutdownLogger()
	os.Exit(code)
}
