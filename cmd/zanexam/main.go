package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/abenov/zanexam/internal/handler"
	appI18n "github.com/abenov/zanexam/internal/i18n"
	"github.com/abenov/zanexam/internal/judge"
	"github.com/abenov/zanexam/internal/judge/prompts"
	"github.com/abenov/zanexam/internal/match"
	"github.com/abenov/zanexam/internal/model"
	"github.com/abenov/zanexam/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "zanexam",
		Short: "Legal-knowledge exam grading service",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `zanexam --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func judgeFlags(f *pflag.FlagSet) {
	f.String("judge-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL for the advisory judge")
	f.String("judge-key", "ollama", "API key for the advisory judge")
	f.String("judge-model", "llama3.2", "Advisory judge model name")
	f.Duration("judge-timeout", judge.DefaultTimeout, "Timeout per advisory judge call")
	f.Int("max-judge-calls", judge.DefaultMaxCalls, "Advisory judge call budget for the process lifetime")
	f.Int("max-batch-retries", judge.DefaultMaxRetries, "Retry attempts per failed judge batch")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "zanexam.db", "SQLite database path")
	f.StringP("lang", "l", "ru", "Response label language (en, ru)")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	f.String("admin-password", "", "Initial admin password (or set ZANEXAM_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	judgeFlags(f)
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a submission file offline and print the result as JSON",
		RunE:  runGrade,
	}
	f := cmd.Flags()
	f.StringP("input", "i", "-", "Submission JSON file path (- for stdin)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.Bool("no-judge", false, "Skip the remote judge and use rule-based judgments only")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	judgeFlags(f)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored submissions as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "zanexam.db", "SQLite database path")
	f.String("exam-id", "", "Exam identifier for output (required)")
	f.String("subject", "", "Subject name for output (required)")
	f.String("date", "", "Exam date in YYYY-MM-DD format (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("exam-id")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("date")

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

	v.SetEnvPrefix("ZANEXAM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("zanexam")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/zanexam")
	v.AddConfigPath("/etc/zanexam")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func graderConfig(v *viper.Viper) model.GraderConfig {
	return model.GraderConfig{
		JudgeURL:        v.GetString("judge-url"),
		JudgeKey:        v.GetString("judge-key"),
		JudgeModel:      v.GetString("judge-model"),
		JudgeTimeout:    v.GetDuration("judge-timeout"),
		MaxRemoteCalls:  v.GetInt("max-judge-calls"),
		MaxBatchRetries: v.GetInt("max-batch-retries"),
		Lang:            v.GetString("lang"),
	}
}

// buildOrchestrator wires the judge client, call budget and rule-based
// fallback. A nil judge yields an all-fallback orchestrator.
func buildOrchestrator(cfg model.GraderConfig, remote bool) *judge.Orchestrator {
	var j judge.Judge
	if remote {
		client := judge.NewClient(cfg.JudgeURL, cfg.JudgeKey, cfg.JudgeModel, cfg.JudgeTimeout)
		if err := client.Ping(context.Background()); err != nil {
			slog.Warn("advisory judge unreachable, continuing with rule-based fallback",
				"url", cfg.JudgeURL, "error", err)
		} else {
			slog.Info("advisory judge OK", "url", cfg.JudgeURL, "model", cfg.JudgeModel)
		}
		j = client
	}
	ctrl := judge.NewController(cfg.MaxRemoteCalls, cfg.MaxBatchRetries)
	return judge.NewOrchestrator(j, ctrl, judge.NewFallback(nil))
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if err := prompts.Load(); err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	cfg := graderConfig(v)
	orch := buildOrchestrator(cfg, true)

	h := handler.New(db, orch)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: v.GetStringSlice("cors-origins"),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"judge_model", cfg.JudgeModel,
		"judge_url", cfg.JudgeURL,
		"max_judge_calls", cfg.MaxRemoteCalls,
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}

// gradeInput is the submission file format accepted by the grade command.
type gradeInput struct {
	Student model.Student `json:"student"`
	Items   []struct {
		Question      string `json:"question"`
		CorrectAnswer string `json:"correct_answer"`
		UserAnswer    string `json:"user_answer"`
	} `json:"items"`
}

type gradeOutput struct {
	Student       model.Student      `json:"student"`
	Authoritative model.ScoreSummary `json:"authoritative"`
	Advisory      model.ScoreSummary `json:"advisory"`
	Judgments     []model.Judgment   `json:"judgments"`
}

func runGrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if err := prompts.Load(); err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	inPath := v.GetString("input")
	var in io.Reader
	if inPath == "" || inPath == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(inPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	var input gradeInput
	if err := json.NewDecoder(in).Decode(&input); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("input has no items")
	}

	items := make([]model.GradingItem, len(input.Items))
	correct := 0
	for i, it := range input.Items {
		items[i] = model.GradingItem{
			Ordinal:       i + 1,
			Question:      it.Question,
			CorrectAnswer: it.CorrectAnswer,
			UserAnswer:    it.UserAnswer,
		}
		if match.Matches(it.UserAnswer, it.CorrectAnswer, it.Question) {
			correct++
		}
	}

	cfg := graderConfig(v)
	orch := buildOrchestrator(cfg, !v.GetBool("no-judge"))

	judgments := orch.Grade(cmd.Context(), items)

	out := gradeOutput{
		Student:       input.Student,
		Authoritative: model.Summarize(correct, len(items)),
		Advisory:      model.Aggregate(judgments),
		Judgments:     judgments,
	}
	return writeJSON(v.GetString("output"), out)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportAllSubmissions()
	if err != nil {
		return fmt.Errorf("export submissions: %w", err)
	}

	export := model.ExamExport{
		ExamID:      v.GetString("exam-id"),
		Subject:     v.GetString("subject"),
		Date:        v.GetString("date"),
		GeneratedAt: time.Now(),
		Submissions: results,
	}
	return writeJSON(v.GetString("output"), export)
}

func writeJSON(outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

func seedAdmin(db *store.Store, password string) error {
	existing, err := db.GetMetadata(store.AdminPasswordKey)
	if err != nil {
		return err
	}
	if existing != "" {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or ZANEXAM_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := db.SetMetadata(store.AdminPasswordKey, string(hash)); err != nil {
		return fmt.Errorf("store admin credential: %w", err)
	}

	slog.Info("seeded admin credential")
	return nil
}
