// Command kas-alias rewrites an `nm -n` symbol listing of a compiled
// kernel image so that every name-colliding symbol gains a distinguishing
// alias, addressable through kallsyms.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/kas-alias/kasalias/internal/addr2line"
	"github.com/kas-alias/kasalias/internal/aliaseng"
	"github.com/kas-alias/kasalias/internal/classify"
	"github.com/kas-alias/kasalias/internal/config"
	"github.com/kas-alias/kasalias/internal/emit"
	"github.com/kas-alias/kasalias/internal/version"
)

func main() {
	if err := run(); err != nil {
		var fatal *config.FatalError
		if errors.As(err, &fatal) {
			fmt.Fprintf(os.Stderr, "kas-alias: %v\n", fatal.Err)
			os.Exit(fatal.Code)
		}
		fmt.Fprintf(os.Stderr, "kas-alias: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		inputPath    = flag.String("input", "", "path to the nm -n listing (required)")
		imagePath    = flag.String("image", "", "path to the ELF image passed to addr2line (required)")
		toolPath     = flag.String("addr2line", "", "path to the addr2line binary (default: $KAS_ALIAS_ADDR2LINE or $PATH)")
		outputPath   = flag.String("output", "", "path to write the augmented listing (required; '-' for stdout)")
		aliasData    = flag.Bool("alias-data", false, "allow aliasing of data symbols (b/B/d/D/r/R)")
		aliasDataAll = flag.Bool("alias-data-all", false, "suppress the expanded filter list (baseline patterns still apply)")
		verbose      = flag.Bool("v", false, "emit progress diagnostics to standard error")
		suffixForm   = flag.String("suffix-form", "", "fallback alias spelling: alias, at, or legacy (default derived from -compat, else alias)")
		compat       = flag.String("compat", "", "semver of the oldest build system this run must stay compatible with")
		progressFlag = flag.Bool("progress", false, "show a progress bar on stderr while processing (ignored when stderr is not a terminal)")
		configPath   = flag.String("config", os.Getenv("KAS_ALIAS_CONFIG"), "optional YAML config file merged under flag values")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "kas-alias: add kallsyms aliases for name-colliding symbols in an nm -n listing\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n  %s -input nm.txt -image vmlinux -output nm-aliased.txt\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(&cfg, inputPath, imagePath, toolPath, outputPath, aliasData, aliasDataAll, verbose, suffixForm, compat, progressFlag)

	setupLogging(cfg.Verbose)

	if cfg.InputPath == "" || cfg.ImagePath == "" || cfg.OutputPath == "" {
		return config.Fatal(errors.New("input, image, and output are required"))
	}

	explicitForm := cfg.SuffixForm
	if *suffixForm == "" && explicitForm == string(version.FormAlias) {
		// LoadFile's "alias" default is not an explicit choice, so -compat
		// still selects the spelling unless -suffix-form was given; a config
		// file value of "alias" is treated the same way.
		explicitForm = ""
	}
	form, err := version.ResolveSuffixForm(cfg.Compat, explicitForm)
	if err != nil {
		return config.Fatal(err)
	}

	in, err := openInput(cfg.InputPath)
	if err != nil {
		return config.Fatal(fmt.Errorf("open input: %w", err))
	}
	defer in.Close()

	toolExplicit := cfg.ToolPath != ""
	resolvedTool, toolErr := config.ResolveToolPath(cfg.ToolPath)

	var bridge *addr2line.Bridge
	switch {
	case toolErr == nil:
		bridge, err = addr2line.Open(resolvedTool, cfg.ImagePath)
		if err != nil {
			if toolExplicit {
				return config.Fatal(fmt.Errorf("addr2line required but unavailable: %w", err))
			}
			slog.Debug("addr2line unavailable, falling back to serial suffixes", "error", err)
			bridge = nil
		}
	case toolExplicit:
		return config.Fatal(fmt.Errorf("addr2line required but unavailable: %w", toolErr))
	default:
		slog.Debug("addr2line not found, falling back to serial suffixes", "error", toolErr)
	}
	if bridge != nil {
		defer bridge.Close()
	}

	classifier, err := classify.New(cfg.AliasDataAll)
	if err != nil {
		return config.Fatal(err)
	}

	opts := aliaseng.Options{
		AliasData:    cfg.AliasData,
		AliasDataAll: cfg.AliasDataAll,
		SuffixForm:   form,
	}
	var bar *progressbar.ProgressBar
	if cfg.Progress && term.IsTerminal(int(os.Stderr.Fd())) {
		opts.Progress = func(processed, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("aliasing symbols"),
					progressbar.OptionSetWriter(os.Stderr),
				)
			}
			_ = bar.Set(processed)
		}
	}

	eng := aliaseng.New(classifier, bridge, opts)
	defer eng.Teardown()

	if err := eng.Ingest(in); err != nil {
		return config.Fatal(fmt.Errorf("ingest: %w", err))
	}

	records, err := eng.Run()
	if err != nil {
		return config.Fatal(fmt.Errorf("alias pass: %w", err))
	}
	if bar != nil {
		_ = bar.Finish()
	}

	out, closeOut, err := openOutput(cfg.OutputPath)
	if err != nil {
		return config.Fatal(fmt.Errorf("open output: %w", err))
	}
	defer closeOut()

	if err := emit.Write(out, records); err != nil {
		return config.Fatal(fmt.Errorf("write output: %w", err))
	}

	slog.Info("kas-alias complete", "records", len(records), "version", version.Version)
	return nil
}

func applyFlagOverrides(cfg *config.Config, inputPath, imagePath, toolPath, outputPath *string,
	aliasData, aliasDataAll, verbose *bool, suffixForm, compat *string, progressFlag *bool) {

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputPath = *inputPath
		case "image":
			cfg.ImagePath = *imagePath
		case "addr2line":
			cfg.ToolPath = *toolPath
		case "output":
			cfg.OutputPath = *outputPath
		case "alias-data":
			cfg.AliasData = *aliasData
		case "alias-data-all":
			cfg.AliasDataAll = *aliasDataAll
		case "v":
			cfg.Verbose = *verbose
		case "suffix-form":
			cfg.SuffixForm = *suffixForm
		case "compat":
			cfg.Compat = *compat
		case "progress":
			cfg.Progress = *progressFlag
		}
	})
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
