package webhooks

import (
	"encoding/json"
	"fmt"
)

// EventType is the GitHub event name carried in the X-GitHub-Event
// header.
type EventType string

const (
	EventRepository   EventType = "repository"
	EventMember       EventType = "member"
	EventOrganization EventType = "organization"
	EventTeam         EventType = "team"
	EventInstallation EventType = "installation"
)

// Sender is the account that triggered the event.
type Sender struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// RepositoryOwner is the owning account of a repository.
type RepositoryOwner struct {
	Login string `json:"login"`
}

// Repository is the affected repository, when the event carries one.
type Repository struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	FullName string          `json:"full_name"`
	Private  bool            `json:"private"`
	HTMLURL  string          `json:"html_url,omitempty"`
	Owner    RepositoryOwner `json:"owner"`
}

// Organization is the org the event belongs to.
type Organization struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// Installation identifies the GitHub App installation that delivered
// the event. Installation lifecycle events carry the installed-on
// account here rather than as a top-level organization.
type Installation struct {
	ID      int64         `json:"id"`
	Account *Organization `json:"account,omitempty"`
}

// Payload is the typed subset of a GitHub webhook body the console
// consumes.
type Payload struct {
	Action       string        `json:"action"`
	Sender       *Sender       `json:"sender,omitempty"`
	Repository   *Repository   `json:"repository,omitempty"`
	Organization *Organization `json:"organization,omitempty"`
	Member       *Sender       `json:"member,omitempty"`
	Visibility   string        `json:"visibility,omitempty"`
	Installation *Installation `json:"installation,omitempty"`
}

// Event is one parsed webhook delivery. Raw keeps the full decoded body
// for policy condition resolution, which addresses fields by dot path
// rather than through the typed payload.
type Event struct {
	Type       EventType
	DeliveryID string
	Payload    Payload
	Raw        map[string]interface{}
}

// ParseEvent decodes a delivery body into both the typed payload and
// the raw document.
func ParseEvent(eventType EventType, deliveryID string, body []byte) (*Event, error) {
	event := &Event{
		Type:       eventType,
		DeliveryID: deliveryID,
	}

	if err := json.Unmarshal(body, &event.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	if err := json.Unmarshal(body, &event.Raw); err != nil {
		return nil, fmt.Errorf("failed to decode webhook body: %w", err)
	}

	return event, nil
}
