package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
	"github.com/Mineru98/crossmodal-retrieval-go/candidates"
	"github.com/Mineru98/crossmodal-retrieval-go/config"
	"github.com/Mineru98/crossmodal-retrieval-go/internal/logger"
	"github.com/Mineru98/crossmodal-retrieval-go/rank"
)

// Options configures an Evaluator
type Options struct {
	// BatchSize is the number of caption rows scored per batch
	BatchSize int
	// Workers is the number of scoring batches run concurrently
	Workers int
	// Ks are the recall cut-offs to report
	Ks []int
	// PairedCaptions keeps one caption per distinct image before scoring
	PairedCaptions bool
	// Logger receives stage and progress entries; nil discards them
	Logger logrus.FieldLogger
}

// OptionsFromConfig maps the evaluation section of cfg to Options
func OptionsFromConfig(cfg config.Config, log logrus.FieldLogger) Options {
	return Options{
		BatchSize:      cfg.Evaluation.BatchSize,
		Workers:        cfg.Evaluation.Workers,
		Ks:             append([]int(nil), cfg.Evaluation.Ks...),
		PairedCaptions: cfg.Evaluation.PairedCaptions,
		Logger:         log,
	}
}

// Evaluator runs collection, deduplication, similarity scoring and recall
type Evaluator struct {
	enc  crossmodal.Encoder
	opts Options
	log  logrus.FieldLogger
}

// New creates an Evaluator around enc
func New(enc crossmodal.Encoder, opts Options) *Evaluator {
	opts.Ks = rank.NormalizeKs(opts.Ks)
	var log logrus.FieldLogger = logger.Discard()
	if opts.Logger != nil {
		log = opts.Logger
	}
	return &Evaluator{enc: enc, opts: opts, log: log}
}

// Run encodes every batch of src and scores the result under a new run id
func (e *Evaluator) Run(ctx context.Context, src crossmodal.DataSource) (*Report, error) {
	start := time.Now()
	set, err := e.Collect(ctx, src)
	if err != nil {
		return nil, err
	}
	report, err := e.Score(ctx, uuid.NewString(), set)
	if err != nil {
		return nil, err
	}
	report.Elapsed = time.Since(start)
	return report, nil
}

// Collect encodes src into a candidate set without scoring it
func (e *Evaluator) Collect(ctx context.Context, src crossmodal.DataSource) (*crossmodal.CandidateSet, error) {
	if e.enc == nil {
		return nil, fmt.Errorf("evaluator has no encoder")
	}
	e.log.Info("encoding candidates")
	set, err := candidates.Collect(ctx, e.enc, src, candidates.CollectOptions{Logger: e.opts.Logger})
	if err != nil {
		return nil, fmt.Errorf("collect candidates: %w", err)
	}
	e.log.WithFields(logrus.Fields{
		"captions": set.NumCaptions(),
		"images":   set.NumImages(),
		"dim":      set.Dim(),
	}).Info("candidates collected")
	return set, nil
}

// Score deduplicates a collected set, builds the similarity matrix and
// computes recall in both directions
func (e *Evaluator) Score(ctx context.Context, runID string, set *crossmodal.CandidateSet) (*Report, error) {
	start := time.Now()
	log := e.log.WithField("run_id", runID)

	deduped, err := candidates.Dedup(set, e.opts.PairedCaptions)
	if err != nil {
		return nil, fmt.Errorf("dedup: %w", err)
	}
	log.WithFields(logrus.Fields{
		"images_before": set.NumImages(),
		"images_after":  deduped.NumImages(),
		"captions":      deduped.NumCaptions(),
		"paired":        e.opts.PairedCaptions,
	}).Info("duplicates removed")

	truth, err := rank.TruthFromIDs(deduped.CaptionImageIDs, deduped.ImageIDs)
	if err != nil {
		return nil, fmt.Errorf("ground truth: %w", err)
	}

	log.Info("evaluating on the validation set")
	matrix, err := rank.SimilarityMatrix(ctx, deduped.Means, deduped.Variances, deduped.Vectors, rank.Options{
		BatchSize: e.opts.BatchSize,
		Workers:   e.opts.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity matrix: %w", err)
	}
	scores, err := rank.RecallScoresWithTruth(matrix, truth, e.opts.Ks)
	if err != nil {
		return nil, fmt.Errorf("recall: %w", err)
	}

	report := &Report{
		RunID:    runID,
		Captions: deduped.NumCaptions(),
		Images:   deduped.NumImages(),
		Ks:       append([]int(nil), e.opts.Ks...),
		Scores:   scores,
		Elapsed:  time.Since(start),
	}
	log.WithField("elapsed", report.Elapsed.String()).Info(report.Line())
	return report, nil
}
