package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/docsmith/docex-api/internal/config"
	"github.com/docsmith/docex-api/internal/domain"
)

// systemInstruction steers the model toward the structured payload that
// parseModelText understands.
const systemInstruction = "Extract all text and any tables from this document. " +
	"Represent tables as a JSON array of objects with 'headers' and 'rows' keys."

// GeminiExtractor implements the Extractor interface using Google's Gemini
// API. PDFs are uploaded through the Files API and referenced by URI; images
// are sent inline.
type GeminiExtractor struct {
	logger *slog.Logger
	config config.Gemini
	client *genai.Client
	model  string
}

// NewGeminiExtractor creates a new GeminiExtractor with the provided
// dependencies. Returns an error if the configuration is invalid or the
// client cannot be constructed.
func NewGeminiExtractor(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.Gemini,
) (*GeminiExtractor, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return &GeminiExtractor{
		logger: logger,
		config: cfg,
		client: client,
		model:  cfg.Model,
	}, nil
}

// Extract converts the referenced file into Markdown via the Gemini API.
func (g *GeminiExtractor) Extract(
	ctx context.Context,
	req Request,
) (*domain.ExtractionResult, error) {
	logger := g.logger.With(
		"media_type", req.MediaType,
		"source_name", req.SourceName,
	)

	content, err := g.buildContent(ctx, req)
	if err != nil {
		return nil, err
	}
	contents := []*genai.Content{content}

	text, err := g.generateWithRetry(ctx, logger, contents)
	if err != nil {
		return nil, err
	}

	inputTokens := g.countTokens(ctx, logger, contents)
	outputTokens := g.countTokens(ctx, logger, genai.Text(text))
	logger.InfoContext(ctx, "extraction tokens counted",
		"input_tokens", inputTokens,
		"output_tokens", outputTokens)

	pages := []domain.Page{parseModelText(text)}
	return buildResult(pages, inputTokens, outputTokens), nil
}

// buildContent assembles the request content for the file. PDFs go through
// the Files API so multi-page documents stay within inline size limits.
func (g *GeminiExtractor) buildContent(ctx context.Context, req Request) (*genai.Content, error) {
	switch {
	case req.MediaType == "application/pdf":
		uploaded, err := g.client.Files.UploadFromPath(ctx, req.FilePath, &genai.UploadFileConfig{
			MIMEType: req.MediaType,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: file upload failed: %v", ErrTransientFailure, err)
		}
		part := genai.NewPartFromURI(uploaded.URI, uploaded.MIMEType)
		return genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser), nil

	case strings.HasPrefix(req.MediaType, "image/"):
		data, err := os.ReadFile(req.FilePath)
		if err != nil {
			return nil, fmt.Errorf("%w: reading upload: %v", ErrExtractionFailed, err)
		}
		part := genai.NewPartFromBytes(data, req.MediaType)
		return genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, req.MediaType)
	}
}

// generateWithRetry calls the Gemini API with exponential backoff and jitter.
// Transient errors (network, quota) are retried up to MaxRetries times;
// permanent errors (blocked content, malformed response) return immediately.
func (g *GeminiExtractor) generateWithRetry(
	ctx context.Context,
	logger *slog.Logger,
	contents []*genai.Content,
) (string, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 3
	}
	baseDelaySeconds := g.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		logger.InfoContext(ctx, "calling extraction model",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1)

		text, err := g.generateOnce(ctx, contents, genCfg)
		if err == nil {
			return text, nil
		}

		logger.ErrorContext(ctx, "extraction model call failed",
			"attempt", attempt+1,
			"error", err)

		if errors.Is(err, ErrContentBlocked) || errors.Is(err, ErrInvalidResponse) {
			return "", err
		}

		if attempt >= maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d)",
				ErrTransientFailure, maxRetries)
		}

		// delay = baseDelay * (2^attempt) * (0.5 + rand(0, 0.5))
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		jitterFactor := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoffSeconds * jitterFactor * float64(time.Second))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrTransientFailure, ctx.Err())
		}
	}
}

// generateOnce performs a single model call and validates the response shape.
func (g *GeminiExtractor) generateOnce(
	ctx context.Context,
	contents []*genai.Content,
	genCfg *genai.GenerateContentConfig,
) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransientFailure, err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: finish reason safety", ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", ErrInvalidResponse)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty text in response", ErrInvalidResponse)
	}

	return text, nil
}

// countTokens reports the token count for the given contents. Counting is
// best-effort usage telemetry; failures log at debug and report zero.
func (g *GeminiExtractor) countTokens(
	ctx context.Context,
	logger *slog.Logger,
	contents []*genai.Content,
) int32 {
	resp, err := g.client.Models.CountTokens(ctx, g.model, contents, nil)
	if err != nil || resp == nil {
		logger.DebugContext(ctx, "token count unavailable", "error", err)
		return 0
	}
	return resp.TotalTokens
}
