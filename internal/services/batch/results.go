package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/minuta/internal/interfaces"
)

// ParseResultLines decodes newline-delimited batch result records from r.
// Each line is independent: a line that fails to decode is logged and
// counted but does not abort the remainder. Returns the decoded results
// and the number of skipped lines.
func ParseResultLines(r io.Reader, logger arbor.ILogger) ([]interfaces.BatchResult, int) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxResultLineBytes)

	var results []interfaces.BatchResult
	skipped := 0
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var result interfaces.BatchResult
		if err := json.Unmarshal([]byte(line), &result); err != nil {
			skipped++
			logger.Warn().
				Err(err).
				Int("line", lineNo).
				Msg("Skipping malformed batch result line")
			continue
		}
		results = append(results, result)
	}

	if err := scanner.Err(); err != nil {
		logger.Warn().
			Err(err).
			Int("line", lineNo).
			Msg("Batch result stream ended early")
	}

	return results, skipped
}

// ExtractText pulls the model output text out of one batch result. This is
// the single dispatch site on the result discriminator: "succeeded" yields
// the first text content block, "errored" surfaces the remote message as an
// *ErroredResultError, the remaining known variants and any unknown
// discriminator fail with their own messages.
func ExtractText(result interfaces.BatchResult) (string, error) {
	switch result.Result.Type {
	case interfaces.BatchResultSucceeded:
		if result.Result.Message == nil {
			return "", fmt.Errorf("succeeded result %s has no message body", result.CustomID)
		}
		for _, block := range result.Result.Message.Content {
			if block.Type == "text" {
				return block.Text, nil
			}
		}
		return "", fmt.Errorf("succeeded result %s has no text content block", result.CustomID)

	case interfaces.BatchResultErrored:
		message := "unknown remote error"
		if result.Result.Error != nil && result.Result.Error.Error != nil {
			message = result.Result.Error.Error.Message
		}
		return "", &ErroredResultError{CustomID: result.CustomID, Message: message}

	case interfaces.BatchResultCanceled:
		return "", fmt.Errorf("batch request %s was canceled before completion", result.CustomID)

	case interfaces.BatchResultExpired:
		return "", fmt.Errorf("batch request %s expired before completion", result.CustomID)

	default:
		return "", fmt.Errorf("batch result %s has unexpected type '%s'", result.CustomID, result.Result.Type)
	}
}
