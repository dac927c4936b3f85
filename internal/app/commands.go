package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/redis/go-redis/v9"

	"github.com/rbright/rehearse/internal/backend"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/fault"
	"github.com/rbright/rehearse/internal/handoff"
	"github.com/rbright/rehearse/internal/questions"
	"github.com/rbright/rehearse/internal/session"
	"github.com/rbright/rehearse/internal/version"
)

var cvExtensions = map[string]struct{}{".pdf": {}, ".doc": {}, ".docx": {}}

func newBackendClient(cfg config.Config, logger *slog.Logger) *backend.Client {
	return backend.New(backend.Options{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   time.Duration(cfg.Backend.RequestTimeoutMS) * time.Millisecond,
		UserAgent: version.UserAgent(),
		Logger:    logger,
	})
}

// openSlot builds the configured handoff slot. The returned close func is
// never nil.
func openSlot(cfg config.HandoffConfig) (handoff.Slot, func(), error) {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second

	if cfg.Backend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		return handoff.NewRedisSlot(client, cfg.Key, ttl), func() { _ = client.Close() }, nil
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		resolved, err := handoff.DefaultPath()
		if err != nil {
			return nil, func() {}, err
		}
		path = resolved
	}
	return handoff.NewFileSlot(path, ttl), func() {}, nil
}

// checkCVFile rejects documents the backend cannot extract text from.
func checkCVFile(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := cvExtensions[ext]; !ok {
		return fault.Validation("upload_cv", "Please upload a PDF, DOC, or DOCX file.")
	}
	return nil
}

func (r Runner) commandUpload(ctx context.Context, cfg config.Config, logger *slog.Logger, path string) int {
	if err := checkCVFile(path); err != nil {
		return r.fail(logger, "upload", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return r.fail(logger, "upload", fmt.Errorf("open CV: %w", err))
	}
	defer f.Close()

	slot, closeSlot, err := openSlot(cfg.Handoff)
	if err != nil {
		return r.fail(logger, "upload", err)
	}
	defer closeSlot()

	client := newBackendClient(cfg, logger)
	uploaded, err := client.UploadCV(ctx, filepath.Base(path), f)
	if err != nil {
		return r.fail(logger, "upload", err)
	}
	if err := slot.Put(ctx, uploaded.ExtractedText); err != nil {
		return r.fail(logger, "upload", err)
	}

	logger.Info("cv uploaded",
		"filename", uploaded.Filename,
		"size", uploaded.Size,
		"extracted_chars", len(uploaded.ExtractedText),
	)
	fmt.Fprintf(r.Stdout, "Uploaded %s (%d bytes); extracted %d characters.\n",
		uploaded.Filename, uploaded.Size, len(uploaded.ExtractedText))
	fmt.Fprintln(r.Stdout, "Run `rehearse interview` to start practicing.")
	return 0
}

// readCV returns CV text from cvPath when given, otherwise from the handoff
// slot. keep puts slot text back so a later command can use it.
func readCV(ctx context.Context, cfg config.Config, cvPath string, keep bool) (string, error) {
	if cvPath != "" {
		data, err := os.ReadFile(cvPath)
		if err != nil {
			return "", fmt.Errorf("read CV text: %w", err)
		}
		return string(data), nil
	}

	slot, closeSlot, err := openSlot(cfg.Handoff)
	if err != nil {
		return "", err
	}
	defer closeSlot()

	text, err := slot.Take(ctx)
	if err != nil {
		return "", err
	}
	if keep {
		if err := slot.Put(ctx, text); err != nil {
			return "", err
		}
	}
	return text, nil
}

func (r Runner) commandQuestions(ctx context.Context, cfg config.Config, logger *slog.Logger, cvPath string) int {
	cvText, err := readCV(ctx, cfg, cvPath, true)
	if err != nil {
		return r.fail(logger, "questions", err)
	}

	client := newBackendClient(cfg, logger)
	loader := questions.NewLoader(client, time.Duration(cfg.Questions.TimeoutMS)*time.Millisecond)
	fmt.Fprintln(r.Stderr, "Generating questions…")

	set, err := loader.Load(ctx, cvText)
	if err != nil {
		return r.fail(logger, "questions", err)
	}
	if len(set) == 0 {
		fmt.Fprintln(r.Stdout, "No questions were generated for this CV.")
		return 0
	}
	for _, q := range set {
		fmt.Fprintf(r.Stdout, "%d. %s\n", q.Index+1, q.Text)
	}
	return 0
}

func (r Runner) commandHistory(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	client := newBackendClient(cfg, logger)
	controller := session.NewController(session.BackendStore{Client: client}, logger)

	sessions, err := controller.List(ctx)
	if err != nil {
		return r.fail(logger, "history", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(r.Stdout, "No interviews yet.")
		return 0
	}
	fmt.Fprintln(r.Stdout, renderHistory(sessions))
	return 0
}

func renderHistory(sessions []session.Session) string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		completed := "—"
		if s.Finished() {
			completed = s.FinishedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			s.ID,
			s.Status(),
			s.CreatedAt.Local().Format(time.DateTime),
			completed,
			strconv.Itoa(s.AnswerCount),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SESSION", "STATUS", "CREATED", "COMPLETED", "ANSWERS").
		Rows(rows...).
		String()
}
