package models

import "time"

// Conversation is the client-side cache entry for a persisted conversation.
// Only the active conversation ever has its full transcript materialized.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

// Tool describes one entry of the backend's tool registry.
type Tool struct {
	ID           string `json:"tool_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	RequiresAuth bool   `json:"requires_auth"`
}

// MCPServer is an external tool server registered with the backend.
type MCPServer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type AIModel struct {
	ID          string
	Name        string
	Provider    string
	Description string
}

// Attachment is a binary payload sent alongside a prompt. A send with
// attachments goes through the multipart stream path instead of the
// plain JSON one.
type Attachment struct {
	Name string
	Data []byte
}
