package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/Mineru98/crossmodal-retrieval-go/config"
	"github.com/Mineru98/crossmodal-retrieval-go/dataset"
	"github.com/Mineru98/crossmodal-retrieval-go/internal/logger"
	"github.com/Mineru98/crossmodal-retrieval-go/models"
	"github.com/Mineru98/crossmodal-retrieval-go/tokenizer"
	"github.com/Mineru98/crossmodal-retrieval-go/vecstore"
)

// app holds the loaded configuration and the resources opened for one
// command; Close releases them in reverse order.
type app struct {
	cfg     config.Config
	log     *logrus.Logger
	closers []io.Closer
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, nil)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.WithFields(logrus.Fields{
		"config":           configPath,
		"sentence_encoder": cfg.Model.SentenceEncoder,
		"metric":           cfg.Metric(),
		"val_json":         cfg.Paths.ValJSON,
	}).Debug("configuration loaded")
	return &app{cfg: cfg, log: log}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.WithError(err).Warn("failed to release resource")
		}
	}
	a.closers = nil
}

func (a *app) encoder() (*models.ProbabilisticEncoder, error) {
	if err := a.cfg.Paths.Require("encoder_model"); err != nil {
		return nil, err
	}
	enc, err := models.NewProbabilisticEncoder(models.ProbabilisticConfig{
		ModelPath:         a.cfg.Paths.EncoderModel,
		SharedLibraryPath: a.cfg.Paths.OnnxRuntimeLib,
		TokenInput:        a.cfg.Encoder.TokenInput,
		PositionInput:     a.cfg.Encoder.PositionInput,
		MeanOutput:        a.cfg.Encoder.MeanOutput,
		VarianceOutput:    a.cfg.Encoder.VarianceOutput,
		Metric:            a.cfg.Metric(),
	})
	if err != nil {
		return nil, fmt.Errorf("init encoder: %w", err)
	}
	a.closers = append(a.closers, enc)
	return enc, nil
}

func (a *app) source(ctx context.Context) (*dataset.COCO, error) {
	if err := a.cfg.Paths.Require("tokenizer", "img2vec", "val_json"); err != nil {
		return nil, err
	}
	tok, err := tokenizer.New(a.cfg.Paths.Tokenizer, a.cfg.Encoder.MaxLength, a.cfg.Encoder.AddSpecial)
	if err != nil {
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}
	a.closers = append(a.closers, tok)
	a.log.WithField("vocab_size", tok.VocabularySize()).Debug("tokenizer loaded")

	vectors, err := vecstore.Open(a.cfg.Paths.Img2Vec)
	if err != nil {
		return nil, fmt.Errorf("open image vectors: %w", err)
	}
	a.closers = append(a.closers, vectors)

	a.log.Info("loading validation split")
	src, err := dataset.LoadCOCO(ctx, a.cfg.Paths.ValJSON, vectors, tok, a.cfg.Hyper.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("load validation split: %w", err)
	}
	a.log.WithField("batches", src.NumBatches()).Info("validation split loaded")
	return src, nil
}

func (a *app) snapshots() (*vecstore.Store, error) {
	if err := a.cfg.Paths.Require("snapshot_db"); err != nil {
		return nil, err
	}
	store, err := vecstore.Open(a.cfg.Paths.SnapshotDB)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	a.closers = append(a.closers, store)
	return store, nil
}
