package domain

import "time"

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source identifies the front end a message arrived through.
type Source string

const (
	SourceCLI    Source = "cli"
	SourceSlack  Source = "slack"
	SourceGitHub Source = "github"
	SourceAPI    Source = "api"
	SourceMCP    Source = "mcp"
)

// MetadataSource is the metadata key holding a message's Source.
const MetadataSource = "source"

// Message is a single turn in a conversation.
type Message struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now()}
}

// WithSource returns a copy of m tagged with the given source.
func (m Message) WithSource(src Source) Message {
	md := make(map[string]string, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		md[k] = v
	}
	md[MetadataSource] = string(src)
	m.Metadata = md
	return m
}
