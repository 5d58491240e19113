package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const activeThreadsMetric = "page_messages_active_threads_unique"

// conversationLimit caps the fallback listing. Kept small so the fallback
// stays within its timeout even on busy pages.
const conversationLimit = 20

// ActiveThreads fetches the daily active-unique-threads series for pageID
// between since and until. A timeout, non-2xx status, or undecodable body
// yields a *TransportError; the caller is expected to fall back to
// ListConversations rather than surface it.
func (c *Client) ActiveThreads(ctx context.Context, pageID, token string, since, until time.Time) (*ThreadSeries, error) {
	params := url.Values{}
	params.Set("access_token", token)
	params.Set("metric", activeThreadsMetric)
	params.Set("since", since.Format("2006-01-02"))
	params.Set("until", until.Format("2006-01-02"))
	params.Set("period", "day")

	var decoded providerInsightsResponse
	if err := c.get(ctx, "insights", pageID+"/insights", params, &decoded); err != nil {
		return nil, err
	}

	series := &ThreadSeries{}
	for _, metric := range decoded.Data {
		if metric.Name != activeThreadsMetric {
			continue
		}
		for _, v := range metric.Values {
			series.Values = append(series.Values, ThreadValue{
				EndTime: v.EndTime,
				Value:   v.Value,
			})
		}
	}

	c.logger.Debug("fetched active threads series",
		zap.String("page_id", pageID),
		zap.Int("datapoints", len(series.Values)),
	)
	return series, nil
}

// ListConversations fetches up to conversationLimit conversations with the
// timestamp of their most recent message. Used when the metrics endpoint
// fails.
func (c *Client) ListConversations(ctx context.Context, pageID, token string) ([]Conversation, error) {
	params := url.Values{}
	params.Set("access_token", token)
	params.Set("fields", "participants,messages.limit(1){created_time}")
	params.Set("limit", strconv.Itoa(conversationLimit))

	var decoded providerConversationsResponse
	if err := c.get(ctx, "conversations", pageID+"/conversations", params, &decoded); err != nil {
		return nil, err
	}

	conversations := make([]Conversation, 0, len(decoded.Data))
	for _, pc := range decoded.Data {
		conv := Conversation{ID: pc.ID}
		if len(pc.Messages.Data) > 0 {
			conv.LastMessageTime = pc.Messages.Data[0].CreatedTime
		}
		conversations = append(conversations, conv)
	}

	c.logger.Debug("fetched conversation listing",
		zap.String("page_id", pageID),
		zap.Int("conversations", len(conversations)),
	)
	return conversations, nil
}

// get performs one bounded GET and decodes a 2xx JSON body into out. Every
// failure mode comes back as a *TransportError so the coordinator can treat
// "this endpoint produced nothing" uniformly.
func (c *Client) get(parentCtx context.Context, op, path string, params url.Values, out interface{}) error {
	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.CallTimeout)
	defer cancel()

	fullURL := c.cfg.BaseURL + "/" + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return &TransportError{Kind: KindNetwork, Op: op, Err: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		kind := KindNetwork
		if isTimeout(err) {
			kind = KindTimeout
		}
		c.logger.Warn("graph call failed",
			zap.String("op", op),
			zap.String("kind", string(kind)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return &TransportError{Kind: kind, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)

		// Try to parse structured error for a cleaner log line.
		var perr providerErrorResponse
		if jsonErr := json.Unmarshal(body, &perr); jsonErr == nil && perr.Error.Message != "" {
			c.logger.Warn("graph upstream error",
				zap.String("op", op),
				zap.Int("status", resp.StatusCode),
				zap.String("error_type", perr.Error.Type),
				zap.String("error_message", perr.Error.Message),
			)
			return &TransportError{
				Kind:   KindStatus,
				Op:     op,
				Status: resp.StatusCode,
				Body:   perr.Error.Message,
			}
		}

		c.logger.Warn("graph upstream error",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 200)),
		)
		return &TransportError{
			Kind:   KindStatus,
			Op:     op,
			Status: resp.StatusCode,
			Body:   truncate(string(body), 200),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Warn("graph response decode failed",
			zap.String("op", op),
			zap.Error(err),
		)
		return &TransportError{Kind: KindDecode, Op: op, Err: err}
	}

	return nil
}

// isTimeout classifies deadline and net timeouts; both mean "the endpoint
// did not answer in time", which fails closed rather than erroring out.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
