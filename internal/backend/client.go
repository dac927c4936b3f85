// Package backend is the HTTP client for the interview service: CV upload,
// session lifecycle, question generation, and answer transcription.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/rbright/rehearse/internal/fault"
)

const (
	pathUploadCV          = "/upload_cv"
	pathStartInterview    = "/start_interview"
	pathGenerateQuestions = "/generate_questions"
	pathTranscribeAnswer  = "/transcribe_answer"
	pathFinishInterview   = "/finish_interview"
	pathListInterviews    = "/list_interviews"

	defaultRequestTimeout = 2 * time.Minute
)

// Options configures a Client.
type Options struct {
	BaseURL string
	// Timeout bounds every request that carries no earlier deadline.
	Timeout   time.Duration
	UserAgent string
	Logger    *slog.Logger
}

// Client talks to the interview backend.
type Client struct {
	http     *resty.Client
	validate *validator.Validate
	logger   *slog.Logger
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if opts.UserAgent != "" {
		httpClient.SetHeader("User-Agent", opts.UserAgent)
	}

	return &Client{http: httpClient, validate: validator.New(), logger: logger}
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string { return c.http.BaseURL }

type CVUpload struct {
	Filename      string `json:"filename"`
	ContentType   string `json:"content_type"`
	Size          int64  `json:"size"`
	ExtractedText string `json:"extracted_text" validate:"required"`
}

// UploadCV sends a CV document and returns the server-side text extraction.
func (c *Client) UploadCV(ctx context.Context, filename string, body io.Reader) (CVUpload, error) {
	const op = "upload_cv"

	var out CVUpload
	req := c.request(ctx).SetFileReader("file", filename, body)
	if err := c.do(op, req, http.MethodPost, pathUploadCV, "Upload failed", &out); err != nil {
		return CVUpload{}, err
	}
	if err := c.validate.Struct(out); err != nil {
		return CVUpload{}, fault.Wrap(fault.KindValidation, op, "No text extracted from CV.", err)
	}
	return out, nil
}

type startInterviewResponse struct {
	SessionID string `json:"session_id" validate:"required"`
}

// StartInterview opens a new server-side session.
func (c *Client) StartInterview(ctx context.Context) (string, error) {
	const op = "start_interview"

	var out startInterviewResponse
	if err := c.do(op, c.request(ctx), http.MethodPost, pathStartInterview, "Failed to start interview session", &out); err != nil {
		return "", err
	}
	if err := c.validate.Struct(out); err != nil {
		return "", fault.Wrap(fault.KindServer, op, "Failed to start interview session", err)
	}
	return out.SessionID, nil
}

type generateQuestionsRequest struct {
	CVText string `json:"cv_text"`
}

type generateQuestionsResponse struct {
	Questions []string `json:"questions"`
}

// GenerateQuestions asks the backend for interview questions tailored to
// cvText. The caller owns the deadline.
func (c *Client) GenerateQuestions(ctx context.Context, cvText string) ([]string, error) {
	var out generateQuestionsResponse
	req := c.request(ctx).SetBody(generateQuestionsRequest{CVText: cvText})
	if err := c.do("generate_questions", req, http.MethodPost, pathGenerateQuestions, "Failed to generate questions", &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// Clip is an answer recording ready for upload.
type Clip struct {
	Data     []byte
	Format   string
	Filename string
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
}

// TranscribeAnswer uploads one clip for questionIndex within sessionID.
func (c *Client) TranscribeAnswer(ctx context.Context, clip Clip, sessionID string, questionIndex int) (string, error) {
	contentType := clip.Format
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var out transcribeResponse
	req := c.request(ctx).
		SetMultipartField("file", clip.Filename, contentType, bytes.NewReader(clip.Data)).
		SetMultipartFormData(map[string]string{
			"session_id":   sessionID,
			"question_idx": fmt.Sprintf("%d", questionIndex),
		})
	if err := c.do("transcribe_answer", req, http.MethodPost, pathTranscribeAnswer, "Transcription failed", &out); err != nil {
		return "", err
	}
	return out.Transcript, nil
}

type finishRequest struct {
	SessionID string `json:"session_id"`
}

func (c *Client) FinishInterview(ctx context.Context, sessionID string) error {
	req := c.request(ctx).SetBody(finishRequest{SessionID: sessionID})
	return c.do("finish_interview", req, http.MethodPost, pathFinishInterview, "Failed to finish interview", nil)
}

type InterviewSummary struct {
	SessionID   string     `json:"session_id" validate:"required"`
	CreatedAt   Timestamp  `json:"created_at"`
	FinishedAt  *Timestamp `json:"finished_at,omitempty"`
	AnswerCount int        `json:"answer_count" validate:"gte=0"`
}

type listResponse struct {
	Items []InterviewSummary `json:"items" validate:"dive"`
}

func (c *Client) ListInterviews(ctx context.Context) ([]InterviewSummary, error) {
	const op = "list_interviews"

	var out listResponse
	if err := c.do(op, c.request(ctx), http.MethodGet, pathListInterviews, "Failed to load interviews", &out); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(out); err != nil {
		return nil, fault.Wrap(fault.KindServer, op, "Failed to load interviews", err)
	}
	return out.Items, nil
}

// Health issues a GET against path and reports any non-2xx status.
func (c *Client) Health(ctx context.Context, path string) error {
	if path == "" {
		path = "/"
	}
	return c.do("health", c.request(ctx), http.MethodGet, path, "backend is not healthy", nil)
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())
}

func (c *Client) do(op string, req *resty.Request, method, path, generic string, out any) error {
	started := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		return classifyTransport(req.Context(), op, err)
	}

	c.logger.Debug("backend request",
		"op", op,
		"status", resp.StatusCode(),
		"elapsed_ms", time.Since(started).Milliseconds(),
		"request_id", req.Header.Get("X-Request-ID"),
	)

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return fault.Server(op, errorDetail(resp.Body(), generic), resp.StatusCode())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fault.Wrap(fault.KindServer, op, generic, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func classifyTransport(ctx context.Context, op string, err error) error {
	var netErr net.Error
	timedOut := errors.Is(err, context.DeadlineExceeded) ||
		(ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) ||
		(errors.As(err, &netErr) && netErr.Timeout())
	if timedOut {
		return fault.Wrap(fault.KindTimeout, op, "Request timed out. Please try again.", err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fault.Wrap(fault.KindNetwork, op, "", err)
}

// errorDetail extracts a string "detail" from an error body. Structured
// details (such as validation lists) fall back to generic.
func errorDetail(body []byte, generic string) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil || len(payload.Detail) == 0 {
		return generic
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err != nil || strings.TrimSpace(detail) == "" {
		return generic
	}
	return detail
}
