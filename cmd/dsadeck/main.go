package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dsadeck/dsadeck/internal/content"
	"github.com/dsadeck/dsadeck/internal/grader"
	"github.com/dsadeck/dsadeck/internal/handler"
	appI18n "github.com/dsadeck/dsadeck/internal/i18n"
	"github.com/dsadeck/dsadeck/internal/session"
)

func main() {
	// A missing .env is fine; flags and real environment still apply.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dsadeck",
		Short: "DSA practice server with timed mock tests and LLM grading",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `dsadeck --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP practice server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "dsadeck.db", "SQLite content database path")
	f.StringSliceP("questions", "q", []string{"questions/dsa_questions.json"}, "Paths to questions JSON files (repeatable)")
	f.StringSlice("topics", []string{"questions/topics.json"}, "Paths to topics JSON files (repeatable)")
	f.String("llm-provider", "gemini", "Grading provider (gemini, openai)")
	f.String("gemini-url", "", "Gemini API base URL (empty = public endpoint)")
	f.String("gemini-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	f.String("gemini-model", grader.DefaultGeminiModel, "Gemini model name")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for the OpenAI-compatible provider")
	f.String("llm-model", "llama3.2", "Model name for the OpenAI-compatible provider")
	f.StringP("lang", "l", "en", "UI language")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import questions and topics JSON files into the content database",
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "dsadeck.db", "SQLite content database path")
	f.StringSliceP("questions", "q", []string{"questions/dsa_questions.json"}, "Paths to questions JSON files (repeatable)")
	f.StringSlice("topics", []string{"questions/topics.json"}, "Paths to topics JSON files (repeatable)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("DSADECK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// The key is also accepted under the name the Gemini docs use.
	_ = v.BindEnv("gemini-key", "DSADECK_GEMINI_KEY", "GEMINI_API_KEY")

	v.SetConfigName("dsadeck")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/dsadeck")
	v.AddConfigPath("/etc/dsadeck")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func importContent(store *content.Store, questionFiles, topicFiles []string) error {
	for _, path := range questionFiles {
		if _, err := store.ImportQuestions(path); err != nil {
			return fmt.Errorf("import questions %s: %w", path, err)
		}
	}
	for _, path := range topicFiles {
		if _, err := store.ImportTopics(path); err != nil {
			return fmt.Errorf("import topics %s: %w", path, err)
		}
	}
	return nil
}

func newGrader(v *viper.Viper) (grader.Grader, error) {
	switch provider := strings.ToLower(v.GetString("llm-provider")); provider {
	case "gemini":
		return grader.NewGeminiGrader(
			v.GetString("gemini-url"),
			v.GetString("gemini-key"),
			v.GetString("gemini-model"),
		), nil
	case "openai":
		return grader.NewOpenAIGrader(
			v.GetString("llm-url"),
			v.GetString("llm-key"),
			v.GetString("llm-model"),
		), nil
	default:
		return nil, fmt.Errorf("unknown llm-provider %q", provider)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	store, err := content.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := importContent(store, v.GetStringSlice("questions"), v.GetStringSlice("topics")); err != nil {
		return err
	}
	available, err := store.QuestionCount()
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	g, err := newGrader(v)
	if err != nil {
		return err
	}
	if v.GetString("llm-provider") == "gemini" && v.GetString("gemini-key") == "" {
		slog.Warn("no Gemini API key configured, grading requests will fail until one is set")
	}

	h := handler.New(store, session.NewManager(), g)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Grading calls block on the upstream model for up to a minute.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("starting server",
		"addr", addr,
		"provider", v.GetString("llm-provider"),
		"questions", available,
		"lang", lang,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runImport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	store, err := content.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := importContent(store, v.GetStringSlice("questions"), v.GetStringSlice("topics")); err != nil {
		return err
	}

	count, err := store.QuestionCount()
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	fmt.Printf("content database ready: %d questions\n", count)
	return nil
}
