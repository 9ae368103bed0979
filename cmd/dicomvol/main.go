package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/morfeuslab/dicomvol/internal/config"
	"github.com/morfeuslab/dicomvol/internal/pipeline"
	"github.com/morfeuslab/dicomvol/internal/preview"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	// Define command-line flags
	input := flag.String("input", "", "Directory or file to reconstruct (required)")
	configFile := flag.String("config", "", "Load configuration from YAML file")
	workers := flag.Int("workers", 0, fmt.Sprintf("Number of parallel file readers (default: %d = CPU cores)", runtime.NumCPU()))
	timeout := flag.Int("file-timeout", -1, "Per-file read timeout in seconds (0 disables)")
	modalities := flag.String("modalities", "", "Comma-separated modality codes to ingest (default: all)")
	noRepair := flag.Bool("no-repair", false, "Flag skipped slices without inserting an interpolated slice")
	previewDir := flag.String("preview", "", "Write a middle-slice PNG per volume into this directory")
	verbose := flag.Bool("v", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dicomvol %s\n", version)
		os.Exit(0)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	if *verbose {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: -input is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}
	if *workers > 0 {
		cfg.Ingest.Workers = *workers
	}
	if *timeout >= 0 {
		cfg.Ingest.FileTimeoutSeconds = *timeout
	}
	if *modalities != "" {
		cfg.Ingest.Modalities = strings.Split(*modalities, ",")
	}
	if *noRepair {
		cfg.Reconstruct.RepairSkippedSlices = false
	}
	if *previewDir != "" {
		cfg.Preview.Enabled = true
		cfg.Preview.Dir = *previewDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	paths, err := collectFiles(*input)
	if err != nil {
		log.Fatal().Err(err).Msg("scanning input")
	}
	if len(paths) == 0 {
		log.Fatal().Str("input", *input).Msg("no files found")
	}
	log.Info().Int("files", len(paths)).Str("input", *input).Msg("starting reconstruction")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("reading files"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	p := pipeline.New(cfg, log)
	p.Progress = func(string) { _ = bar.Add(1) }

	res, err := p.Run(ctx, paths)
	if err != nil {
		log.Fatal().Err(err).Msg("reconstruction aborted")
	}
	_ = bar.Finish()

	for _, d := range res.Dropped {
		log.Warn().Str("file", d.Path).Str("reason", d.Reason).Msg("file dropped")
	}
	for _, vr := range res.Volumes {
		v := vr.Volume
		ev := log.Info().
			Str("modality", string(v.Modality)).
			Str("series", v.SeriesUID).
			Str("description", v.SeriesDescription).
			Str("plane", string(v.Plane)).
			Ints("dims", v.Dimensions[:]).
			Floats64("spacing", v.Spacing[:]).
			Int("structures", len(vr.Masks))
		if v.Unverified != "" {
			ev = ev.Str("unverified", v.Unverified)
		}
		ev.Msg("volume reconstructed")

		if cfg.Preview.Enabled && v.Data != nil {
			if path, err := preview.WritePNG(v, cfg.Preview.Dir, cfg.Preview.Scale); err != nil {
				log.Warn().Err(err).Str("series", v.SeriesUID).Msg("preview failed")
			} else {
				log.Debug().Str("path", path).Msg("preview written")
			}
		}
	}

	log.Info().
		Int("volumes", len(res.Volumes)).
		Int("dropped", len(res.Dropped)).
		Msg("done")
}

// collectFiles expands the input path into the list of candidate files,
// walking directories recursively. Hidden files and DICOMDIR indexes are
// skipped.
func collectFiles(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{input}, nil
	}

	var paths []string
	err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || name == "DICOMDIR" {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}
