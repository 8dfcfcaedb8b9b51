package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/team-channel/internal/channel"
	"github.com/example/team-channel/internal/channelsync"
)

// Client talks to the store API on behalf of one user. It implements
// channelsync.Store, so an engine can run against a remote store directly.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
}

// NewClient builds a store client for the given base URL and user identity.
func NewClient(baseURL, userID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, userID: userID, http: httpClient}
}

// APIError is a non-2xx answer from the store.
type APIError struct {
	Status    int
	ErrorCode string
	Message   string
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("store returned %d (%s): %s", e.Status, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("store returned %d: %s", e.Status, e.Message)
}

// FetchMessages returns the channel's messages with id > afterID.
func (c *Client) FetchMessages(ctx context.Context, key channel.Key, afterID int64) ([]channel.Message, error) {
	path := fmt.Sprintf("/teams/%s/channels/%s/messages", url.PathEscape(key.TeamID), url.PathEscape(key.Date))
	query := url.Values{}
	if afterID > 0 {
		query.Set("after_id", strconv.FormatInt(afterID, 10))
	}

	var out messageListResponse
	if err := c.do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}

	messages := make([]channel.Message, len(out.Messages))
	for i, payload := range out.Messages {
		messages[i] = payload.toMessage()
	}
	return messages, nil
}

// PostMessage submits a message and returns the stored copy.
func (c *Client) PostMessage(ctx context.Context, key channel.Key, input channelsync.SendInput) (channel.Message, error) {
	path := fmt.Sprintf("/teams/%s/channels/%s/messages", url.PathEscape(key.TeamID), url.PathEscape(key.Date))
	body := postMessageRequest{
		Content:           input.Content,
		MessageType:       string(input.Type),
		RelatedScheduleID: input.RelatedScheduleID,
		RequestedStart:    input.RequestedStart,
		RequestedEnd:      input.RequestedEnd,
	}

	var out messagePayload
	if err := c.do(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return channel.Message{}, err
	}
	return out.toMessage(), nil
}

// ApproveRequest resolves a pending schedule request.
func (c *Client) ApproveRequest(ctx context.Context, messageID int64) (channelsync.ApproveResult, error) {
	var out approveResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/messages/%d/approve", messageID), nil, nil, &out); err != nil {
		return channelsync.ApproveResult{}, err
	}
	return channelsync.ApproveResult{
		Schedule:        out.Schedule.toSchedule(),
		ResponseMessage: out.Message.toMessage(),
	}, nil
}

// RejectRequest declines a pending schedule request.
func (c *Client) RejectRequest(ctx context.Context, messageID int64) (channel.Message, error) {
	var out messagePayload
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/messages/%d/reject", messageID), nil, nil, &out); err != nil {
		return channel.Message{}, err
	}
	return out.toMessage(), nil
}

// AcknowledgeResponse marks a negotiation response as read.
func (c *Client) AcknowledgeResponse(ctx context.Context, messageID int64) (channel.Message, error) {
	var out messagePayload
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/messages/%d/ack", messageID), nil, nil, &out); err != nil {
		return channel.Message{}, err
	}
	return out.toMessage(), nil
}

// CheckConflict asks whether the interval overlaps the user's confirmed
// schedules.
func (c *Client) CheckConflict(ctx context.Context, userID string, start, end time.Time, excludeScheduleID int64) (bool, error) {
	query := url.Values{}
	query.Set("user_id", userID)
	query.Set("start", start.Format(time.RFC3339))
	query.Set("end", end.Format(time.RFC3339))
	if excludeScheduleID > 0 {
		query.Set("exclude_schedule_id", strconv.FormatInt(excludeScheduleID, 10))
	}

	var out conflictResponse
	if err := c.do(ctx, http.MethodGet, "/conflicts/check", query, nil, &out); err != nil {
		return false, err
	}
	return out.HasConflict, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(UserIDHeader, c.userID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			payload.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, ErrorCode: payload.ErrorCode, Message: payload.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
