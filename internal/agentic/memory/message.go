// Package memory хранит историю диалога AI агента между вызовами модели.
package memory

// Role: автор сообщения.
type Role string

const (
	RoleSystem         Role = "system"
	RoleUser           Role = "user"
	RoleAssistant      Role = "assistant"
	RoleToolCallResult Role = "tool_call_result"
)

// Content: часть содержимого сообщения.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Text создаёт текстовое содержимое.
func Text(s string) Content {
	return Content{Type: "text", Text: s}
}

// ToolCall: запрос модели на вызов инструмента.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolCallResult: результат вызова инструмента.
type ToolCallResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content any    `json:"content,omitempty"`
}

// Message: сообщение диалога.
//
// ToolCalls заполняется только у assistant сообщений,
// Results: только у tool_call_result.
type Message struct {
	Role      Role             `json:"role"`
	Name      string           `json:"name,omitempty"`
	Content   []Content        `json:"content,omitempty"`
	ToolCalls []ToolCall       `json:"toolCalls,omitempty"`
	Results   []ToolCallResult `json:"results,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// SystemMessage создаёт системное сообщение.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []Content{Text(text)}}
}

// UserMessage создаёт сообщение пользователя.
func UserMessage(text ...string) Message {
	m := Message{Role: RoleUser}
	for _, t := range text {
		m.Content = append(m.Content, Text(t))
	}
	return m
}

// AssistantMessage создаёт ответ модели с необязательными вызовами инструментов.
func AssistantMessage(text string, calls ...ToolCall) Message {
	m := Message{Role: RoleAssistant, ToolCalls: calls}
	if text != "" {
		m.Content = []Content{Text(text)}
	}
	return m
}

// ToolCallResultMessage создаёт сообщение с результатами инструментов.
func ToolCallResultMessage(results ...ToolCallResult) Message {
	return Message{Role: RoleToolCallResult, Results: results}
}
