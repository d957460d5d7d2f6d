package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		switch {
		case errors.Is(err, errConfigFatal):
			fmt.Fprintln(os.Stderr, err)
			os.Exit(-1)
		case errors.Is(err, errAuthFailure):
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		default:
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
