// Package ansi removes terminal color sequences from scanner output.
package ansi

import (
	"context"
	"io"
	"log/slog"
	"regexp"
)

var sgr = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Strip removes SGR escape sequences (ESC [ params m) from s. Other escape
// sequences are kept.
func Strip(s string) string {
	return sgr.ReplaceAllString(s, "")
}

// Writer is an observer writing stripped chunks to w.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) Writer {
	return Writer{w: w}
}

func (w Writer) Observe(ctx context.Context, chunk string) {
	if _, err := io.WriteString(w.w, Strip(chunk)); err != nil {
		slog.DebugContext(ctx, "writing scanner output failed", "error", err)
	}
}
