package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/woxQAQ/rstrlen/internal/app"
	"github.com/woxQAQ/rstrlen/internal/config"
	"github.com/woxQAQ/rstrlen/internal/strlen"
	"github.com/woxQAQ/rstrlen/pkg/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error); overrides the config")
	libraryName := flag.String("library", "", "Logical library name; overrides the config")
	units := flag.Bool("units", false, "Also print UTF-16 code units and Unicode scalars")
	asJSON := flag.Bool("json", false, "Print one JSON object per input")
	watch := flag.Bool("watch", false, "Reload libraries when their directories change")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rstrlen: failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *libraryName != "" {
		cfg.Library = *libraryName
	}
	if *watch {
		cfg.Watch = true
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rstrlen: %v\n", err)
		os.Exit(1)
	}

	logger.Debug("Starting rstrlen",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	var input io.Reader
	if flag.NArg() == 0 {
		input = os.Stdin
	}

	ok := measureAll(ctx, a, flag.Args(), input, newOutput(os.Stdout, *units, *asJSON), logger)

	a.Close(context.Background())
	cancel()
	logger.Sync()

	if !ok {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

type measurer interface {
	Measure(ctx context.Context, s string) (int64, error)
}

// maxLineSize bounds one line read from stdin.
const maxLineSize = 16 << 20

type output struct {
	w     io.Writer
	units bool
	json  *json.Encoder
}

// measureAll writes one line per input: the args when given, otherwise each
// line read from input. It reports whether every input was measured.
func measureAll(ctx context.Context, m measurer, args []string, input io.Reader, out *output, logger *zap.Logger) bool {
	ok := true
	measure := func(s string) {
		res := measureOne(ctx, m, s, out.units)
		if res.Failed() {
			logger.Error("Failed to measure input", zap.String("input", s), zap.String("error", res.Error))
			ok = false
		}
		out.write(res)
	}

	if input == nil {
		for _, arg := range args {
			if ctx.Err() != nil {
				return false
			}
			measure(arg)
		}
		return ok
	}

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return false
		}
		measure(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		logger.Error("Failed to read input", zap.Error(err))
		return false
	}
	return ok
}

func measureOne(ctx context.Context, m measurer, s string, units bool) protocol.Measurement {
	res := protocol.Measurement{Input: s}

	n, err := m.Measure(ctx, s)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Length = n

	if units {
		counts, err := strlen.Measure(s)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.Units = &protocol.Units{UTF16: counts.UTF16Units, Scalars: counts.Scalars}
	}
	return res
}

// write prints a result. Failed inputs only appear in JSON output.
func (o *output) write(res protocol.Measurement) {
	if o.json != nil {
		o.json.Encode(res)
		return
	}
	if res.Failed() {
		return
	}
	if res.Units == nil {
		fmt.Fprintf(o.w, "%d\n", res.Length)
		return
	}
	fmt.Fprintf(o.w, "%d\tutf16=%d\tscalars=%d\n", res.Length, res.Units.UTF16, res.Units.Scalars)
}

func newOutput(w io.Writer, units, asJSON bool) *output {
	o := &output{w: w, units: units}
	if asJSON {
		o.json = json.NewEncoder(w)
		o.json.SetEscapeHTML(false)
	}
	return o
}
