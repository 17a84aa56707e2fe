package main

import (
	"encoding/json"
	"fmt"
	"io"
)

// Output helpers. Results go to stdout, failures to stderr.
//
//	✓  success
//	✗  failure
//	○  not available

func printOK(w io.Writer, name, msg string) {
	if name == "" {
		fmt.Fprintf(w, "  ✓  %s\n", msg)
		return
	}
	fmt.Fprintf(w, "  ✓  [%s] %s\n", name, msg)
}

func printErr(w io.Writer, name, msg string) {
	if name == "" {
		fmt.Fprintf(w, "  ✗  %s\n", msg)
		return
	}
	fmt.Fprintf(w, "  ✗  [%s] %s\n", name, msg)
}

func printSkip(w io.Writer, name, msg string) {
	fmt.Fprintf(w, "  ○  [%s] %s\n", name, msg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
