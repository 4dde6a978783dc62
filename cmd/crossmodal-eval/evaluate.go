package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
	"github.com/Mineru98/crossmodal-retrieval-go/eval"
)

type evaluateOptions struct {
	configPath string
	snapshot   string
	plain      bool
}

func parseEvaluateFlags(args []string) (evaluateOptions, error) {
	var opts evaluateOptions
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to the evaluation config (yaml or ini)")
	fs.StringVar(&opts.snapshot, "snapshot", "", "Score a saved candidate snapshot instead of running the encoder")
	fs.BoolVar(&opts.plain, "plain", false, "Print only the one-line summary")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.configPath = strings.TrimSpace(opts.configPath)
	opts.snapshot = strings.TrimSpace(opts.snapshot)
	if opts.configPath == "" {
		fs.Usage()
		return opts, errors.New("missing required -config file")
	}
	return opts, nil
}

func runEvaluate(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseEvaluateFlags(args)
	if err != nil {
		return err
	}
	a, err := newApp(opts.configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	runID, set, err := a.candidates(ctx, opts.snapshot)
	if err != nil {
		return err
	}

	ev := eval.New(nil, eval.OptionsFromConfig(a.cfg, a.log))
	report, err := ev.Score(ctx, runID, set)
	if err != nil {
		return err
	}
	report.Elapsed = time.Since(start)

	fmt.Fprintf(stdout, "[validation] %s\n", report.Line())
	if opts.plain {
		return nil
	}
	out, err := glamour.Render(report.Markdown(), "dark")
	if err != nil {
		a.log.WithError(err).Warn("failed to render report")
		out = report.Markdown()
	}
	fmt.Fprintln(stdout, out)
	return nil
}

// candidates loads the snapshot named runID, or encodes the validation
// split under a new run id. A fresh set is saved when a snapshot store
// is configured.
func (a *app) candidates(ctx context.Context, runID string) (string, *crossmodal.CandidateSet, error) {
	if runID != "" {
		store, err := a.snapshots()
		if err != nil {
			return "", nil, err
		}
		set, err := store.LoadCandidates(ctx, runID)
		if err != nil {
			return "", nil, err
		}
		a.log.WithField("run_id", runID).Info("candidate snapshot loaded")
		return runID, set, nil
	}

	enc, err := a.encoder()
	if err != nil {
		return "", nil, err
	}
	src, err := a.source(ctx)
	if err != nil {
		return "", nil, err
	}
	set, err := eval.New(enc, eval.OptionsFromConfig(a.cfg, a.log)).Collect(ctx, src)
	if err != nil {
		return "", nil, err
	}

	runID = uuid.NewString()
	if a.cfg.Paths.SnapshotDB != "" {
		if err := a.save(ctx, runID, set); err != nil {
			return "", nil, err
		}
	}
	return runID, set, nil
}

func (a *app) save(ctx context.Context, runID string, set *crossmodal.CandidateSet) error {
	store, err := a.snapshots()
	if err != nil {
		return err
	}
	if err := store.SaveCandidates(ctx, runID, set); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	a.log.WithField("run_id", runID).Info("candidate snapshot saved")
	return nil
}

func runEncode(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to the evaluation config (yaml or ini)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*configPath) == "" {
		fs.Usage()
		return errors.New("missing required -config file")
	}

	a, err := newApp(strings.TrimSpace(*configPath))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.Paths.Require("snapshot_db"); err != nil {
		return err
	}
	runID, _, err := a.candidates(ctx, "")
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, runID)
	return nil
}
