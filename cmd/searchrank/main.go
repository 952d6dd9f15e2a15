// Command searchrank runs the retrieval pipeline for one query payload and
// prints the ranked results as JSON.
//
// The payload is read from the file named by -payload, or from stdin when
// the flag is omitted. A bare query can be passed with -query instead.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/searchlab/retrieval/internal/conf"
	"github.com/searchlab/retrieval/internal/pkg/logger"
	"github.com/searchlab/retrieval/internal/retrieval"
	"github.com/searchlab/retrieval/internal/websearch/types"
)

var (
	configFile  = flag.String("config", "config.yaml", "config file path")
	payloadFile = flag.String("payload", "", "query payload JSON file (default: stdin)")
	query       = flag.String("query", "", "run a bare query instead of a payload")
	timeout     = flag.Duration("timeout", 2*time.Minute, "overall pipeline timeout")
)

func main() {
	flag.Parse()

	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := logger.InitGlobal(&config.Log); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	payload, err := readPayload()
	if err != nil {
		log.Fatal("failed to read payload", zap.Error(err))
	}

	engine, err := retrieval.New(config.Retrieval, log)
	if err != nil {
		log.Fatal("failed to build retrieval engine", zap.Error(err))
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, err := engine.Retrieve(ctx, payload)
	if err != nil {
		log.Fatal("retrieval failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal("failed to encode output", zap.Error(err))
	}
}

func readPayload() (*types.QueryPayload, error) {
	if *query != "" {
		return &types.QueryPayload{OriginalQuery: *query}, nil
	}

	var raw []byte
	var err error
	if *payloadFile != "" {
		raw, err = os.ReadFile(*payloadFile)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, err
	}

	var payload types.QueryPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid payload JSON: %w", err)
	}
	return &payload, nil
}
