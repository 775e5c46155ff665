// logger.go - structured leveled logging (spec.md AMBIENT STACK:
// "AeroCore generalizes [the teacher's fmt.Println/fmt.Printf ad hoc
// output] into a small structured logger in internal/telemetry, built
// on log/slog").
//
// Grounded on features.go's printFeatures (a build/runtime summary
// dump) and debug_monitor.go's status lines, both ad hoc fmt.Printf
// calls with no level or field structure; New wires the same
// information through slog's leveled, key-value records instead.
package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aerocore/aerocore/internal/config"
)

// New builds a slog.Logger per opts.LogLevel/LogJSON, writing to w
// (os.Stderr in cmd/aerocore, an in-memory buffer in tests).
func New(opts config.Options, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.LogJSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("telemetry: unknown log level %q", s)
	}
}

// LogBuildInfo emits the build/runtime summary features.go's
// printFeatures used to print ad hoc (Go version, OS/Arch, compiled
// features), as one structured record instead of several fmt.Println
// calls.
func LogBuildInfo(logger *slog.Logger, goVersion, goos, goarch string, features []string) {
	logger.Info("aerocore build info",
		slog.String("go_version", goVersion),
		slog.String("os", goos),
		slog.String("arch", goarch),
		slog.Any("features", features),
	)
}

// Default returns a plain stderr text logger at info level, the
// fallback cmd/aerocore uses if New rejects the parsed Options.
func Default() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
