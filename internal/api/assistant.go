package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	apierrors "github.com/nurlabs/nurchat/internal/errors"
	"github.com/nurlabs/nurchat/internal/models"
)

type streamRequest struct {
	ChatID   string `json:"chat_id"`
	Question string `json:"question"`
}

// OpenStream asks the assistant service to answer question within the given
// conversation and returns the open event stream. The caller must close it.
// Cancelling ctx aborts the request and any read blocked on the body.
//
// Failures are classified as:
//   - ErrServiceUnavailable for a non-success status (the APIError is wrapped too)
//   - ErrNoResponse for a success status without a body
//   - a *NetworkError when the service could not be reached
func (c *Client) OpenStream(ctx context.Context, chatID, question string) (io.ReadCloser, error) {
	endpoint := models.EndpointStream
	req, requestID, err := c.newRequest(ctx, http.MethodPost, endpoint, nil,
		streamRequest{ChatID: chatID, Question: question}, models.StreamHeaders())
	if err != nil {
		return nil, err
	}

	c.logger.Debug("opening assistant stream",
		zap.String("chat_id", chatID),
		zap.String("request_id", requestID),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, "open stream", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		apiErr := responseError(resp, endpoint)
		c.logger.Warn("assistant stream rejected",
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode),
			zap.Error(apiErr),
		)
		return nil, fmt.Errorf("%w: %w", apierrors.ErrServiceUnavailable, apiErr)
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, apierrors.ErrNoResponse
	}

	return resp.Body, nil
}
