package util

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

// Must panics on err. Only use it where err is impossible by construction.
func Must[V any](value V, err error) V {
	if err != nil {
		panic(err)
	}
	return value
}

// TermWidth reports the width of the terminal attached to stdout, then
// $COLUMNS, then defaultWidth.
func TermWidth(defaultWidth int) int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if c, err := strconv.Atoi(cols); err == nil && c > 0 {
			return c
		}
	}
	return defaultWidth
}
