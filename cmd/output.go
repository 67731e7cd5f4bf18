package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Bidon15/roundctl/internal/chain"
	"github.com/Bidon15/roundctl/internal/config"
)

// Output helpers

// printJSON outputs data as formatted JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printError prints an error message with the hint matching its kind.
func printError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "%s %s\n", colorRed(w, "Error:"), err.Error())

	var (
		cfgErr      *config.ConfigurationError
		revertedErr *chain.TransactionRevertedError
		writeErr    *chain.RemoteWriteError
	)
	switch {
	case errors.As(err, &cfgErr):
		_, _ = fmt.Fprintln(w, "  Kind: configuration (nothing was sent)")
	case errors.As(err, &revertedErr):
		_, _ = fmt.Fprintf(w, "  Kind: reverted (block %d, gas used %d)\n", revertedErr.BlockNumber, revertedErr.GasUsed)
	case errors.As(err, &writeErr):
		_, _ = fmt.Fprintln(w, "  Kind: remote write")
	case errors.Is(err, chain.ErrRemoteRead):
		_, _ = fmt.Fprintln(w, "  Kind: remote read (no state changed)")
	}
}

// newTable creates a new tabwriter for formatted output.
func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// printTableHeader prints a bold header row.
func printTableHeader(w *tabwriter.Writer, out io.Writer, columns ...string) {
	for i, col := range columns {
		if i > 0 {
			_, _ = fmt.Fprint(w, "\t")
		}
		_, _ = fmt.Fprint(w, colorBold(out, col))
	}
	_, _ = fmt.Fprintln(w)
}

// Terminal colors

func colorRed(w io.Writer, s string) string {
	return colorize(w, "\033[31m", s)
}

func colorGreen(w io.Writer, s string) string {
	return colorize(w, "\033[32m", s)
}

func colorYellow(w io.Writer, s string) string {
	return colorize(w, "\033[33m", s)
}

func colorBold(w io.Writer, s string) string {
	return colorize(w, "\033[1m", s)
}

func colorize(w io.Writer, code, s string) string {
	if !isTTY(w) {
		return s
	}
	return code + s + "\033[0m"
}

// isTTY reports whether w is a terminal. Buffers and pipes never are.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
