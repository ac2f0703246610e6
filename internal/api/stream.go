package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"agentx/internal/models"
	"agentx/internal/stream"
)

// StreamRequest carries everything the backend needs to answer one
// prompt: the message, where to file it, and the user's current tool,
// server and model selection.
type StreamRequest struct {
	Message        string
	ConversationID string
	MCPServerURLs  []string
	Model          string
	EnabledTools   []string
	Attachments    []models.Attachment
}

// EventStream adapts a live chat response body to the decoder. Close
// releases the connection; callers must always call it.
type EventStream struct {
	dec  *stream.Decoder
	body io.Closer
}

func (s *EventStream) Next() (stream.Event, bool) { return s.dec.Next() }

func (s *EventStream) Close() error { return s.body.Close() }

// OpenStream starts a streaming exchange. Requests without attachments
// go to the JSON endpoint; attachments switch to the multipart one,
// which takes the same fields as form values.
func (c *Client) OpenStream(ctx context.Context, req StreamRequest) (*EventStream, error) {
	var httpReq *http.Request
	var err error
	if len(req.Attachments) > 0 {
		httpReq, err = c.multimodalRequest(ctx, req)
	} else {
		httpReq, err = c.jsonStreamRequest(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	// The default client timeout would cut long generations short, so
	// streaming uses a dedicated client with the shared jar.
	resp, err := c.streamClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("opening chat stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("chat stream: unexpected status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return &EventStream{dec: stream.NewDecoder(resp.Body), body: resp.Body}, nil
}

func (c *Client) streamClient() *http.Client {
	return &http.Client{Jar: c.http.Jar}
}

func (c *Client) jsonStreamRequest(ctx context.Context, req StreamRequest) (*http.Request, error) {
	payload := map[string]any{
		"message":         req.Message,
		"mcp_server_urls": emptyNotNil(req.MCPServerURLs),
		"model":           req.Model,
		"enabled_tools":   emptyNotNil(req.EnabledTools),
	}
	if req.ConversationID != "" {
		payload["conversation_id"] = req.ConversationID
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding stream request: %w", err)
	}
	return c.newRequest(ctx, http.MethodPost, "/chat/stream", bytes.NewReader(data), "application/json")
}

func (c *Client) multimodalRequest(ctx context.Context, req StreamRequest) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"message": req.Message,
		"model":   req.Model,
	}
	if req.ConversationID != "" {
		fields["conversation_id"] = req.ConversationID
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("writing form field %s: %w", name, err)
		}
	}

	// List-valued fields travel JSON-encoded inside the form.
	for name, list := range map[string][]string{
		"mcp_server_urls": req.MCPServerURLs,
		"enabled_tools":   req.EnabledTools,
	} {
		encoded, err := json.Marshal(emptyNotNil(list))
		if err != nil {
			return nil, fmt.Errorf("encoding form field %s: %w", name, err)
		}
		if err := w.WriteField(name, string(encoded)); err != nil {
			return nil, fmt.Errorf("writing form field %s: %w", name, err)
		}
	}

	for _, att := range req.Attachments {
		part, err := w.CreateFormFile("images", att.Name)
		if err != nil {
			return nil, fmt.Errorf("adding attachment %s: %w", att.Name, err)
		}
		if _, err := part.Write(att.Data); err != nil {
			return nil, fmt.Errorf("writing attachment %s: %w", att.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing multipart body: %w", err)
	}
	return c.newRequest(ctx, http.MethodPost, "/chat/stream/multimodal", &buf, w.FormDataContentType())
}

// emptyNotNil keeps list fields encoding as [] rather than null.
func emptyNotNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
