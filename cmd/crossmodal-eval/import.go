package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/Mineru98/crossmodal-retrieval-go/dataset"
	"github.com/Mineru98/crossmodal-retrieval-go/vecstore"
)

func runImport(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to the evaluation config (yaml or ini)")
	vectorsPath := fs.String("vectors", "", "JSON object mapping image id to vector")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*configPath) == "" || strings.TrimSpace(*vectorsPath) == "" {
		fs.Usage()
		return errors.New("missing required -config or -vectors file")
	}

	a, err := newApp(strings.TrimSpace(*configPath))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.Paths.Require("img2vec"); err != nil {
		return err
	}
	ids, vectors, err := dataset.ReadImageVectors(strings.TrimSpace(*vectorsPath))
	if err != nil {
		return err
	}

	store, err := vecstore.Open(a.cfg.Paths.Img2Vec)
	if err != nil {
		return fmt.Errorf("open image vectors: %w", err)
	}
	a.closers = append(a.closers, store)

	if err := store.PutImageVectors(ctx, ids, vectors); err != nil {
		return err
	}
	a.log.WithField("images", len(ids)).Info("image vectors imported")
	fmt.Fprintf(stdout, "imported %d image vectors into %s\n", len(ids), a.cfg.Paths.Img2Vec)
	return nil
}
