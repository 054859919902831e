package unittest

import (
	"flag"
	"io"
	"os"

	"github.com/rs/zerolog"
)

var verbose = flag.Bool("vv", false, "print node logs in tests")

// Logger returns the logger of a node under test. Output is discarded unless the test
// binary runs with -vv.
func Logger() zerolog.Logger {
	var out io.Writer = io.Discard
	if *verbose {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}
	return zerolog.New(out).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
