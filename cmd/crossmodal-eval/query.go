package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
	"github.com/Mineru98/crossmodal-retrieval-go/candidates"
	"github.com/Mineru98/crossmodal-retrieval-go/dataset"
	"github.com/Mineru98/crossmodal-retrieval-go/retrieve"
)

const (
	modeCaptionToImage = "s2i"
	modeImageToCaption = "i2s"
)

type captionLookup interface {
	Caption(id int64) (string, bool)
}

func runQuery(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to the evaluation config (yaml or ini)")
	mode := fs.String("mode", "", "Retrieval direction: s2i (caption id to images) or i2s (image id to captions)")
	snapshot := fs.String("snapshot", "", "Query a saved candidate snapshot instead of running the encoder")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*configPath) == "" {
		fs.Usage()
		return errors.New("missing required -config file")
	}
	if *mode != modeCaptionToImage && *mode != modeImageToCaption {
		fs.Usage()
		return fmt.Errorf("-mode must be %s or %s, got %q", modeCaptionToImage, modeImageToCaption, *mode)
	}

	a, err := newApp(strings.TrimSpace(*configPath))
	if err != nil {
		return err
	}
	defer a.Close()

	_, set, err := a.candidates(ctx, strings.TrimSpace(*snapshot))
	if err != nil {
		return err
	}
	deduped, err := candidates.Dedup(set, false)
	if err != nil {
		return err
	}
	engine, err := retrieve.NewQueryEngine(deduped)
	if err != nil {
		return err
	}

	if err := a.cfg.Paths.Require("val_json"); err != nil {
		return err
	}
	anns, err := dataset.ReadAnnotations(a.cfg.Paths.ValJSON)
	if err != nil {
		return err
	}

	a.log.WithField("mode", *mode).Info("ready for queries")
	return queryLoop(ctx, engine, dataset.NewCaptionIndex(anns), *mode, a.cfg.Evaluation.TopN, stdin, stdout)
}

// queryLoop reads one id per line until EOF or an empty line and prints
// the top n results for each
func queryLoop(ctx context.Context, engine *retrieve.QueryEngine, captions captionLookup, mode string, n int, in io.Reader, out io.Writer) error {
	prompt := "input caption id: "
	if mode == modeImageToCaption {
		prompt = "input image id: "
	}

	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return nil
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			fmt.Fprintf(out, "invalid id %q\n", line)
			continue
		}

		switch mode {
		case modeCaptionToImage:
			err = printImages(engine, captions, id, n, out)
		default:
			err = printCaptions(engine, captions, id, n, out)
		}
		if errors.Is(err, crossmodal.ErrUnknownID) {
			fmt.Fprintf(out, "%d: not found\n", id)
			continue
		}
		if err != nil {
			return err
		}
	}
}

func printImages(engine *retrieve.QueryEngine, captions captionLookup, captionID int64, n int, out io.Writer) error {
	hits, err := engine.RankImages(captionID, n)
	if err != nil {
		return err
	}
	if text, ok := captions.Caption(captionID); ok {
		fmt.Fprintf(out, "Caption: %s\n", text)
	}
	for _, h := range hits {
		fmt.Fprintln(out, h.ID)
	}
	return nil
}

func printCaptions(engine *retrieve.QueryEngine, captions captionLookup, imageID int64, n int, out io.Writer) error {
	hits, err := engine.RankCaptions(imageID, n)
	if err != nil {
		return err
	}
	for _, h := range hits {
		text, ok := captions.Caption(h.ID)
		if !ok {
			text = fmt.Sprintf("<caption %d>", h.ID)
		}
		fmt.Fprintf(out, "Caption: %s\n", text)
	}
	return nil
}
