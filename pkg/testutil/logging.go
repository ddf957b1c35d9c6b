package testutil

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Test binaries importing this package log at trace level, but only print
// when run with -v.
func init() {
	logrus.SetLevel(logrus.TraceLevel)
	if !verbose(os.Args[1:]) {
		logrus.SetOutput(io.Discard)
	}
}

func verbose(args []string) bool {
	for _, arg := range args {
		switch strings.TrimPrefix(arg, "-") {
		case "test.v", "test.v=true":
			return true
		}
	}
	return false
}
