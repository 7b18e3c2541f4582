package elevenlabs

// Agent is a conversational agent summary.
type Agent struct {
	AgentID       string `json:"agent_id"`
	Name          string `json:"name"`
	CreatedAtUnix int64  `json:"created_at_unix_secs,omitempty"`
	AccessLevel   string `json:"access_level,omitempty"`
}

type agentList struct {
	Agents     []Agent `json:"agents"`
	HasMore    bool    `json:"has_more"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// KnowledgeBaseRef is an entry in an agent's prompt knowledge base.
type KnowledgeBaseRef struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	ID        string `json:"id"`
	UsageMode string `json:"usage_mode,omitempty"`
}

// AgentPrompt carries the prompt section of an agent configuration.
type AgentPrompt struct {
	Prompt        string             `json:"prompt,omitempty"`
	LLM           string             `json:"llm,omitempty"`
	KnowledgeBase []KnowledgeBaseRef `json:"knowledge_base"`
	RAG           map[string]any     `json:"rag,omitempty"`
}

// AgentDetail is the subset of the agent configuration this service reads.
type AgentDetail struct {
	AgentID            string `json:"agent_id"`
	Name               string `json:"name"`
	ConversationConfig struct {
		Agent struct {
			FirstMessage string      `json:"first_message,omitempty"`
			Language     string      `json:"language,omitempty"`
			Prompt       AgentPrompt `json:"prompt"`
		} `json:"agent"`
	} `json:"conversation_config"`
}

// KnowledgeBase returns the documents attached to the agent prompt.
func (a *AgentDetail) KnowledgeBase() []KnowledgeBaseRef {
	if a == nil {
		return nil
	}
	return a.ConversationConfig.Agent.Prompt.KnowledgeBase
}

type agentPatch struct {
	ConversationConfig struct {
		Agent struct {
			Prompt struct {
				KnowledgeBase []KnowledgeBaseRef `json:"knowledge_base"`
			} `json:"prompt"`
		} `json:"agent"`
	} `json:"conversation_config"`
}

// Document is a knowledge base document summary.
type Document struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Type            string         `json:"type,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	DependentAgents []any          `json:"dependent_agents,omitempty"`
	AccessLevel     string         `json:"access_level,omitempty"`
}

type documentList struct {
	Documents  []Document `json:"documents"`
	HasMore    bool       `json:"has_more"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type createTextRequest struct {
	Text string `json:"text"`
	Name string `json:"name"`
}

// CreatedDocument is returned after uploading a document.
type CreatedDocument struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RAGIndex describes the state of a document's retrieval index.
type RAGIndex struct {
	ID                 string  `json:"id"`
	Model              string  `json:"model"`
	Status             string  `json:"status"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

type ragIndexList struct {
	Indexes []RAGIndex `json:"indexes"`
}

type ragIndexRequest struct {
	Model string `json:"model"`
}
