// Command bouncecsv reads bounce messages from files, directories, mbox archives,
// S3 prefixes or IMAP mailboxes and writes one "recipient,code,reason" CSV row per
// message.
//
//	bouncecsv [-rules rules.yaml] [-workers n] [-o out.csv] [-strict] target...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.io/infrasutra/bouncecsv/internal/batch"
	"github.io/infrasutra/bouncecsv/internal/bounce"
	"github.io/infrasutra/bouncecsv/internal/config"
	"github.io/infrasutra/bouncecsv/internal/mailsource"
	"github.io/infrasutra/bouncecsv/internal/report"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()

	fs := flag.NewFlagSet("bouncecsv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rulesPath := fs.String("rules", cfg.RulesPath, "YAML or TOML rule table")
	workers := fs.Int("workers", cfg.Workers, "messages processed concurrently")
	outPath := fs.String("o", "", "write CSV to this file instead of stdout")
	strict := fs.Bool("strict", false, "stop at the first target that cannot be opened")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: bouncecsv [flags] target...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	classifier, err := bounce.NewClassifierFromFile(*rulesPath)
	if err != nil {
		logger.Error("load rules", "error", err, "path", *rulesPath)
		return 1
	}
	processor := bounce.NewProcessor(classifier, bounce.NewResolver(cfg.NoiseMarkers), logger)
	runner := batch.New(processor, logger, *workers)

	var records []bounce.Record
	failed := false
	for _, target := range fs.Args() {
		src, err := mailsource.Open(ctx, target)
		if err == nil {
			var result batch.Result
			result, err = runner.Run(ctx, src)
			records = append(records, result.Records...)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Warn("interrupted", "target", target)
				return 1
			}
			logger.Error("read target", "error", err, "target", target)
			failed = true
			if *strict {
				return 1
			}
		}
	}

	out := stdout
	if *outPath != "" {
		file, err := os.Create(*outPath)
		if err != nil {
			logger.Error("create output", "error", err, "path", *outPath)
			return 1
		}
		defer file.Close()
		out = file
	}
	if err := report.Write(out, records); err != nil {
		logger.Error("write csv", "error", err)
		return 1
	}

	if failed {
		return 1
	}
	return 0
}
