// Command mzquant-export builds a validated quantification report from an
// experiment description and writes it to a file or the configured blob
// store, optionally recording the build in a SQLite export archive.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"mzquant/internal/blob"
	"mzquant/internal/cv"
	"mzquant/internal/export"
	"mzquant/internal/persistence"
	"mzquant/internal/persistence/sqlite"
	"mzquant/internal/report"
	"mzquant/pkg/quant"
)

var exitFunc = os.Exit

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "mzquant-export: %v\n", err)
		exitFunc(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mzquant-export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var obos stringList
	fs.Var(&obos, "obo", "OBO vocabulary file, repeatable; all files merge into one lookup")
	experimentPath := fs.String("experiment", "", "experiment description JSON (required)")
	outPath := fs.String("out", "-", "output file, '-' for stdout")
	blobKey := fs.String("blob-key", "", "store the document under this key via MZQUANT_BLOB_* instead of -out")
	archivePath := fs.String("archive", "", "SQLite export archive path (used with -blob-key)")
	strict := fs.Bool("strict", false, "exit non-zero when validation produced warnings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *experimentPath == "" {
		return fmt.Errorf("-experiment is required")
	}

	exp, err := loadExperiment(*experimentPath)
	if err != nil {
		return err
	}
	validator, err := loadValidator(obos)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var res quant.Result
	if *blobKey != "" {
		res, err = exportToBlob(ctx, stdout, validator, exp, *blobKey, *archivePath)
	} else {
		res, err = exportToFile(stdout, validator, exp, *outPath)
	}
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}
	if *strict && !res.OK() {
		return fmt.Errorf("%d validation warnings", len(res.Warnings))
	}
	return nil
}

func loadExperiment(path string) (*quant.Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment: %w", err)
	}
	var exp quant.Experiment
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("decode experiment: %w", err)
	}
	return &exp, nil
}

func loadValidator(paths []string) (*cv.Validator, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	merged := cv.NewVocabulary()
	for _, path := range paths {
		vocab, err := cv.LoadOBO(path)
		if err != nil {
			return nil, err
		}
		merged.Merge(vocab)
	}
	return cv.NewValidator(merged), nil
}

func exportToFile(stdout io.Writer, validator *cv.Validator, exp *quant.Experiment, outPath string) (quant.Result, error) {
	doc, res := report.NewBuilder(validator, exp).Build()
	if outPath == "-" {
		if _, err := stdout.Write(doc); err != nil {
			return res, fmt.Errorf("write document: %w", err)
		}
		return res, nil
	}
	if err := os.WriteFile(outPath, doc, 0o644); err != nil {
		return res, fmt.Errorf("write document: %w", err)
	}
	return res, nil
}

func exportToBlob(ctx context.Context, stdout io.Writer, validator *cv.Validator, exp *quant.Experiment, key, archivePath string) (quant.Result, error) {
	store, err := blob.Open(ctx)
	if err != nil {
		return quant.Result{}, err
	}
	var archive persistence.Archive
	if archivePath != "" {
		sq, err := sqlite.NewStore(archivePath)
		if err != nil {
			return quant.Result{}, err
		}
		defer func() { _ = sq.Close() }()
		archive = sq
	}

	worker, err := export.NewWorker(export.WorkerConfig{
		Validator: validator,
		Store:     store,
		Archive:   archive,
		Metrics:   export.NewExpvarMetricsRecorder(""),
		Tracer:    export.NewJSONTracer(nil),
	})
	if err != nil {
		return quant.Result{}, err
	}
	out, err := worker.Export(ctx, export.Job{Experiment: exp, Key: key})
	if err != nil {
		return out.Result, err
	}
	fmt.Fprintf(stdout, "stored %s (%d bytes, %d warnings) as %s\n",
		out.Record.Key, out.Record.SizeBytes, out.Record.WarningCount, out.Record.ID)
	return out.Result, nil
}
