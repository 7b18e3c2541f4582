package dto

// AgentRequest is a teacher chat message.
type AgentRequest struct {
	Message  string                 `json:"message" validate:"required"`
	ThreadID string                 `json:"thread_id"`
	Context  map[string]interface{} `json:"context"`
}

// AgentResponse is the assistant reply and what it did.
type AgentResponse struct {
	Response    string                 `json:"response"`
	ActionTaken string                 `json:"action_taken"`
	Success     bool                   `json:"success"`
	ThreadID    string                 `json:"thread_id,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// ThreadTitleRequest carries the first exchange of a conversation.
type ThreadTitleRequest struct {
	FirstMessage  string `json:"first_message" validate:"required"`
	FirstResponse string `json:"first_response" validate:"required"`
}

// ThreadTitleResponse names a conversation.
type ThreadTitleResponse struct {
	Success bool   `json:"success"`
	Title   string `json:"title"`
	Error   string `json:"error,omitempty"`
}
