package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/bellwood/bill-analyst/internal/bill"
	"github.com/bellwood/bill-analyst/internal/chat"
	"github.com/bellwood/bill-analyst/internal/extraction"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Load a local .env if present; real environment variables win
	_ = godotenv.Load()

	fs := ff.NewFlagSet("bill-analyst")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		backend     = fs.StringLong("backend", "gemini", "Model backend: 'gemini' or 'openai'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		openaiKey   = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel = fs.StringLong("openai-model", "gpt-4o", "OpenAI model name")
		cacheDB     = fs.StringLong("cache-db", "", "Extraction cache database file (empty for in-memory)")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BILL_ANALYST"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize the model clients; a missing key is fatal before any
	// listener starts
	var (
		extractor extraction.Extractor
		assistant chat.Assistant
		err       error
	)
	switch *backend {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini clients...", "model", *geminiModel)
		extractor, err = extraction.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini extractor", "error", err)
			os.Exit(1)
		}
		assistant, err = chat.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini assistant", "error", err)
			os.Exit(1)
		}
	case "openai":
		apiKey := *openaiKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("OpenAI API key is required. Set --openai-key flag or OPENAI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing OpenAI clients...", "model", *openaiModel)
		extractor, err = extraction.NewOpenAI(apiKey, *openaiModel)
		if err != nil {
			slog.Error("Failed to initialize OpenAI extractor", "error", err)
			os.Exit(1)
		}
		assistant, err = chat.NewOpenAI(apiKey, *openaiModel)
		if err != nil {
			slog.Error("Failed to initialize OpenAI assistant", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid backend", "backend", *backend, "valid", "gemini or openai")
		os.Exit(1)
	}

	// Initialize the content-addressed extraction cache
	var cache extraction.Cache
	if *cacheDB != "" {
		slog.Info("Initializing cache database...", "path", *cacheDB)
		cache, err = extraction.NewBoltCache(*cacheDB)
		if err != nil {
			slog.Error("Failed to initialize cache database", "error", err)
			os.Exit(1)
		}
	} else {
		cache = extraction.NewMemoryCache()
	}

	service := bill.NewService(extraction.Cached(extractor, cache), assistant, bill.NewSessionStore())
	defer service.Close()

	basicAuth := bill.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := bill.NewServer(service, basicAuth)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
