package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"
)

const usage = `Usage: %s <command> [options]

Commands:
  evaluate  encode the validation split and report recall@k
  encode    encode the validation split and save a candidate snapshot
  import    load image vectors from a JSON file into the img2vec store
  query     rank images for a caption id (s2i) or captions for an image id (i2s)

Run '%s <command> -h' for command options.
`

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("crossmodal-eval: %s: %v", envFile, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		stop()
		log.Fatalf("crossmodal-eval: %v", err)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	err := dispatch(ctx, args, stdin, stdout)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func dispatch(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	name := filepath.Base(os.Args[0])
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, usage, name, name)
		return errors.New("missing command")
	}

	switch args[0] {
	case "evaluate":
		return runEvaluate(ctx, args[1:], stdout)
	case "encode":
		return runEncode(ctx, args[1:], stdout)
	case "import":
		return runImport(ctx, args[1:], stdout)
	case "query":
		return runQuery(ctx, args[1:], stdin, stdout)
	case "-h", "-help", "--help", "help":
		fmt.Fprintf(stdout, usage, name, name)
		return nil
	default:
		fmt.Fprintf(os.Stderr, usage, name, name)
		return fmt.Errorf("unknown command %q", args[0])
	}
}
