package domain

import "time"

// Job: активированное outbound задание из engine.
//
// Job получает Worker через ActivateJobs и передаёт в Handler.
// Завершение: CompleteJob, FailJob или ThrowError.
type Job struct {
	// Key: уникальный ключ задания в engine.
	Key string `json:"jobKey"`

	// Type: тип задания, совпадает с типом outbound коннектора.
	Type string `json:"type"`

	ProcessInstanceKey       string `json:"processInstanceKey"`
	ProcessDefinitionKey     string `json:"processDefinitionKey"`
	BpmnProcessID            string `json:"processDefinitionId"`
	ProcessDefinitionVersion int    `json:"processDefinitionVersion"`
	ElementID                string `json:"elementId"`
	ElementInstanceKey       string `json:"elementInstanceKey"`

	// CustomHeaders: заголовки задачи из модели (resultVariable, errorExpression и т.д.).
	CustomHeaders map[string]string `json:"customHeaders"`

	// Worker: имя воркера, активировавшего задание.
	Worker string `json:"worker"`

	// Retries: оставшиеся попытки.
	Retries int `json:"retries"`

	// Deadline: unix ms, после которого задание вернётся в engine.
	Deadline int64 `json:"deadline"`

	// Variables: переменные процесса.
	Variables map[string]any `json:"variables"`

	TenantID string `json:"tenantId"`
}

// Header возвращает значение заголовка задания.
func (j *Job) Header(name string) string {
	if j.CustomHeaders == nil {
		return ""
	}
	return j.CustomHeaders[name]
}

// DeadlineTime возвращает дедлайн задания.
func (j *Job) DeadlineTime() time.Time {
	return time.UnixMilli(j.Deadline)
}
