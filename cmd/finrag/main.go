// Command finrag starts the question-answering service, runs an
// interactive chat session, or indexes article dumps.
//
// Usage:
//
//	finrag serve                          # start the HTTP service
//	finrag serve --config config.yaml     # with a config file
//	finrag chat                           # interactive question loop
//	finrag index --file articles.jsonl    # index a JSONL article dump
//	finrag version                        # show version information
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	finrag "github.com/finvect/finrag"
	"github.com/finvect/finrag/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "chat":
		runChat(os.Args[2:])
	case "index":
		runIndex(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// loadSystem resolves configuration and wires a system. Shared by all
// subcommands.
func loadSystem(configPath string, opts ...config.Option) (*finrag.System, *zap.Logger) {
	loader := config.NewLoader().WithOptions(opts...)
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)

	sys, err := finrag.New(cfg, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return sys, logger
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	sys, logger := loadSystem(*configPath)
	defer logger.Sync()
	defer sys.Close()

	logger.Info("Starting finrag",
		zap.String("version", finrag.Version),
		zap.String("build_time", finrag.BuildTime),
		zap.String("git_commit", finrag.GitCommit))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sys.Start(ctx); err != nil {
		logger.Fatal("Failed to connect to document store", zap.Error(err))
	}

	srv := NewServer(sys, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	<-ctx.Done()
	srv.Shutdown()
	logger.Info("finrag stopped")
}

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	size := fs.Int("size", 0, "Articles retrieved per question")
	minScore := fs.Float64("min-score", 0, "Gate threshold override")
	fs.Parse(args)

	var opts []config.Option
	if *size > 0 {
		opts = append(opts, config.WithRetrievalSize(*size))
	}
	if *minScore > 0 {
		opts = append(opts, config.WithMinScore(*minScore))
	}

	sys, logger := loadSystem(*configPath, opts...)
	defer logger.Sync()
	defer sys.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sys.Start(ctx); err != nil {
		logger.Fatal("Failed to connect to document store", zap.Error(err))
	}

	if err := sys.Agent.Chat(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Fatal("Chat failed", zap.Error(err))
	}
}

func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	file := fs.String("file", "articles.jsonl", "JSONL article file to index")
	indexName := fs.String("index", "", "Target index name override")
	fs.Parse(args)

	var opts []config.Option
	if *indexName != "" {
		opts = append(opts, config.WithIndex(*indexName))
	}

	sys, logger := loadSystem(*configPath, opts...)
	defer logger.Sync()
	defer sys.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sys.Start(ctx); err != nil {
		logger.Fatal("Failed to connect to document store", zap.Error(err))
	}

	res, err := sys.Indexer.IndexFile(ctx, *file)
	if err != nil {
		logger.Fatal("Indexing failed", zap.Error(err))
	}
	fmt.Printf("Indexed %d articles (%d failed) from %s\n", res.Indexed, res.Failed, *file)
}

func printVersion() {
	fmt.Printf("finrag %s\n", finrag.Version)
	fmt.Printf("  Build Time: %s\n", finrag.BuildTime)
	fmt.Printf("  Git Commit: %s\n", finrag.GitCommit)
}

func printUsage() {
	fmt.Println(`finrag - financial news question answering

Usage:
  finrag <command> [options]

Commands:
  serve     Start the HTTP service
  chat      Interactive question loop on the terminal
  index     Index a JSONL article dump into the document store
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>     Path to configuration file (YAML)

Options for 'chat':
  --config <path>     Path to configuration file (YAML)
  --size <n>          Articles retrieved per question
  --min-score <s>     Gate threshold override

Options for 'index':
  --config <path>     Path to configuration file (YAML)
  --file <path>       JSONL article file (default articles.jsonl)
  --index <name>      Target index name override

Examples:
  finrag serve --config /etc/finrag/config.yaml
  finrag chat --size 3
  finrag index --file articles.jsonl
  finrag version`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
