package batch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/minuta/internal/common"
	"github.com/ternarybob/minuta/internal/interfaces"
)

// anthropicVersion is the API version header sent when fetching results
// from the one-time results URL outside the SDK.
const anthropicVersion = "2023-06-01"

// maxResultLineBytes bounds a single JSONL result line. Model outputs run
// long but a full pass response stays well under this.
const maxResultLineBytes = 16 * 1024 * 1024

// AnthropicService implements the BatchService interface against the
// Anthropic Message Batches API. Submission, status, and cancellation go
// through the SDK; result retrieval fetches the one-time results URL
// directly so individual malformed JSONL lines can be skipped instead of
// aborting the batch.
type AnthropicService struct {
	config     *common.ClaudeConfig
	logger     arbor.ILogger
	client     anthropic.Client
	httpClient *http.Client
	apiKey     string
	limiter    *rate.Limiter
	maxTokens  int
}

// Compile-time assertion: AnthropicService implements BatchService
var _ interfaces.BatchService = (*AnthropicService)(nil)

// NewAnthropicService creates a batch service from Claude configuration.
// The API key is resolved KV-store-first with config fallback, matching the
// rest of the key handling in the application.
func NewAnthropicService(claudeConfig *common.ClaudeConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (*AnthropicService, error) {
	ctx := context.Background()
	apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "anthropic_api_key", claudeConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API key is required for batch service (set via ANTHROPIC_API_KEY, MINUTA_CLAUDE_API_KEY, or claude.api_key in config): %w", err)
	}

	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-sonnet-4-20250514"
	}

	timeout, err := time.ParseDuration(claudeConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", claudeConfig.Timeout, err)
	}

	rateLimit, err := time.ParseDuration(claudeConfig.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit duration '%s': %w", claudeConfig.RateLimit, err)
	}

	maxTokens := claudeConfig.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	service := &AnthropicService{
		config:     claudeConfig,
		logger:     logger,
		client:     client,
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Every(rateLimit), 1),
		maxTokens:  maxTokens,
	}

	logger.Debug().
		Str("model", claudeConfig.Model).
		Str("timeout", timeout.String()).
		Str("rate_limit", rateLimit.String()).
		Int("max_tokens", maxTokens).
		Msg("Anthropic batch service initialized")

	return service, nil
}

// Submit sends one batch of requests and returns the remote batch id.
// Requires a non-empty list with unique custom ids. There is no internal
// retry: a submission failure is ambiguous (the batch may or may not
// exist remotely) and retrying silently would duplicate paid work.
func (s *AnthropicService) Submit(ctx context.Context, requests []interfaces.BatchRequest) (string, error) {
	if len(requests) == 0 {
		return "", &SubmissionError{Err: fmt.Errorf("batch requires at least one request")}
	}

	seen := make(map[string]bool, len(requests))
	for _, req := range requests {
		if req.CustomID == "" {
			return "", &SubmissionError{Err: fmt.Errorf("batch request custom id cannot be empty")}
		}
		if seen[req.CustomID] {
			return "", &SubmissionError{Err: fmt.Errorf("duplicate custom id '%s' in batch", req.CustomID)}
		}
		seen[req.CustomID] = true
	}

	batchRequests := make([]anthropic.MessageBatchNewParamsRequest, 0, len(requests))
	for _, req := range requests {
		model := req.Model
		if model == "" {
			model = s.config.Model
		}
		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = s.maxTokens
		}

		batchRequests = append(batchRequests, anthropic.MessageBatchNewParamsRequest{
			CustomID: req.CustomID,
			Params: anthropic.MessageBatchNewParamsRequestParams{
				Model:     anthropic.Model(model),
				MaxTokens: int64(maxTokens),
				Messages: []anthropic.MessageParam{
					anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
				},
			},
		})
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", &SubmissionError{Err: err}
	}

	batch, err := s.client.Messages.Batches.New(ctx, anthropic.MessageBatchNewParams{
		Requests: batchRequests,
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("request_count", len(requests)).
			Msg("Batch submission failed")
		return "", &SubmissionError{Err: err}
	}

	s.logger.Info().
		Str("batch_id", batch.ID).
		Int("request_count", len(requests)).
		Msg("Batch submitted")

	return batch.ID, nil
}

// GetStatus performs a one-shot read of the batch's processing status.
func (s *AnthropicService) GetStatus(ctx context.Context, batchID string) (*interfaces.BatchStatus, error) {
	if batchID == "" {
		return nil, fmt.Errorf("batch id cannot be empty")
	}

	batch, err := s.client.Messages.Batches.Get(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch status: %w", err)
	}

	status := &interfaces.BatchStatus{
		ID:     batch.ID,
		Status: string(batch.ProcessingStatus),
		Counts: interfaces.BatchRequestCounts{
			Processing: batch.RequestCounts.Processing,
			Succeeded:  batch.RequestCounts.Succeeded,
			Errored:    batch.RequestCounts.Errored,
			Canceled:   batch.RequestCounts.Canceled,
			Expired:    batch.RequestCounts.Expired,
		},
		ResultsURL: batch.ResultsURL,
	}
	if !batch.EndedAt.IsZero() {
		endedAt := batch.EndedAt
		status.EndedAt = &endedAt
	}

	return status, nil
}

// RetrieveResults fetches the batch's one-time results location and parses
// the newline-delimited JSON records. The batch must already have ended;
// a malformed individual line is logged and skipped so one bad record does
// not discard its siblings.
func (s *AnthropicService) RetrieveResults(ctx context.Context, batchID string) ([]interfaces.BatchResult, error) {
	status, err := s.GetStatus(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if status.Status != interfaces.BatchStatusEnded {
		return nil, &NotReadyError{BatchID: batchID, Status: status.Status}
	}
	if status.ResultsURL == "" {
		return nil, fmt.Errorf("batch %s ended but reported no results URL", batchID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, status.ResultsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build results request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch batch results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("results fetch for batch %s returned HTTP %d", batchID, resp.StatusCode)
	}

	results, skipped := ParseResultLines(resp.Body, s.logger)

	s.logger.Info().
		Str("batch_id", batchID).
		Int("result_count", len(results)).
		Int("skipped_lines", skipped).
		Msg("Batch results retrieved")

	return results, nil
}

// Cancel requests best-effort cancellation of a batch. The remote side may
// enter an intermediate "canceling" state before reaching terminal.
func (s *AnthropicService) Cancel(ctx context.Context, batchID string) error {
	if batchID == "" {
		return fmt.Errorf("batch id cannot be empty")
	}

	batch, err := s.client.Messages.Batches.Cancel(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to cancel batch %s: %w", batchID, err)
	}

	s.logger.Info().
		Str("batch_id", batchID).
		Str("status", string(batch.ProcessingStatus)).
		Msg("Batch cancellation requested")

	return nil
}
