package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Setup installs the default slog logger. format is "json" (default) or "text";
// every record carries the service name so engine and migrator logs can be told apart.
func Setup(w io.Writer, format string, level slog.Level) {
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	slog.SetDefault(slog.New(h).With("service", "lottoengine"))
}
