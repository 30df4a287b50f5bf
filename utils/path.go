package utils

import (
	"flag"
	"fmt"
)

// MakePath returns the problem file to analyze: the first non-flag argument.
func MakePath() (string, error) {
	args := flag.Args()
	if len(args) < 1 {
		return "", fmt.Errorf("no problem file given")
	}
	return args[0], nil
}
