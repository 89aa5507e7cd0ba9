// Package main is the entry point for the lemon piece-tree demo CLI.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kebaren/lemon/internal/applog"
	"github.com/kebaren/lemon/internal/config"
	"github.com/kebaren/lemon/internal/piecetree"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg := config.Load()
	if opts.logLevel != "" {
		cfg.LogLevel = applog.ParseLevel(opts.logLevel)
	}
	log := applog.New(applog.Config{Level: cfg.LogLevel, Output: os.Stderr, Prefix: "lemon"})

	if opts.demo {
		runDemo(log, cfg)
		return 0
	}

	if len(opts.files) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no files given (use -demo to run the built-in walkthrough)")
		flag.Usage()
		return 1
	}

	status := 0
	for _, path := range opts.files {
		if err := inspectFile(path, cfg, opts.debug, log); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			status = 1
		}
	}
	return status
}

type cliOptions struct {
	files    []string
	logLevel string
	debug    bool
	demo     bool
}

func parseFlags() cliOptions {
	var opts cliOptions
	var showVersion bool

	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.debug, "debug", false, "Print piece-tree diagnostics as JSON")
	flag.BoolVar(&opts.demo, "demo", false, "Run the built-in insert/delete walkthrough")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "lemon - piece-tree text buffer inspector\n\n")
		fmt.Fprintf(os.Stderr, "Usage: lemon [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lemon file.go            Report line/length stats for a file\n")
		fmt.Fprintf(os.Stderr, "  lemon -debug file.go     Also dump the piece-tree structure\n")
		fmt.Fprintf(os.Stderr, "  lemon -demo              Run the built-in edit walkthrough\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("lemon %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	opts.files = flag.Args()
	return opts
}

func inspectFile(path string, cfg config.Config, debug bool, log *applog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var builder piecetree.Builder
	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			builder.AcceptChunk(string(buf[:n]))
		}
		if err != nil {
			break
		}
	}

	factory := builder.Finish(cfg.NormalizeEOL).
		WithAverageBufferSize(cfg.AverageBufferSize).
		WithCacheCapacity(cfg.CacheCapacity)
	engine := factory.Create(cfg.DefaultEOL)

	log.WithField("file", path).Info("loaded buffer: %d bytes, %d lines", engine.GetLength(), engine.GetLineCount())
	fmt.Printf("%s: %d bytes, %d lines, first line: %q\n", path, engine.GetLength(), engine.GetLineCount(), factory.FirstLineText(80))

	if debug {
		fmt.Println(engine.DebugJSON())
	}
	return nil
}

// runDemo replays a short sequence of inserts and deletes against a
// freshly built engine, printing the buffer after each step.
func runDemo(log *applog.Logger, cfg config.Config) {
	var builder piecetree.Builder
	builder.AcceptChunk("abc\n")
	builder.AcceptChunk("def")
	builder.AcceptChunk("+KML")
	builder.AcceptChunk("\n123")

	factory := builder.Finish(cfg.NormalizeEOL).
		WithAverageBufferSize(cfg.AverageBufferSize).
		WithCacheCapacity(cfg.CacheCapacity)
	engine := factory.Create(cfg.DefaultEOL)

	log.Info("built initial buffer: %q", engine.GetLinesRawContent())
	printStep(engine, "build")

	engine.Insert(0, "124")
	printStep(engine, "insert(0, \"124\")")

	engine.Insert(2, "keb")
	printStep(engine, "insert(2, \"keb\")")

	engine.Insert(engine.GetLength(), "keb")
	printStep(engine, "insert(end, \"keb\")")

	engine.Insert(4, "\nmul lines\n")
	printStep(engine, "insert(4, \"\\nmul lines\\n\")")

	engine.Delete(0, 2)
	printStep(engine, "delete(0, 2)")

	engine.Delete(engine.GetLength()-2, 2)
	printStep(engine, "delete(end-2, 2)")

	engine.Delete(5, 2)
	printStep(engine, "delete(5, 2)")

	engine.Delete(8, 6)
	printStep(engine, "delete(8, 6)")

	engine.Delete(4, 34)
	printStep(engine, "delete(4, 34)")
}

func printStep(e *piecetree.Engine, step string) {
	fmt.Printf("after %s: %q\n", step, e.GetLinesRawContent())
}
