package domain

import "time"

// Severity: уровень записи журнала активности.
type Severity string

const (
	SeverityDebug   Severity = "DEBUG"
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Activity: запись журнала inbound executable.
//
// Журнал ограничен по размеру, старые записи вытесняются.
type Activity struct {
	Severity  Severity  `json:"severity"`
	Tag       string    `json:"tag"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewActivity создаёт запись с текущим временем.
func NewActivity(severity Severity, tag, message string) Activity {
	return Activity{
		Severity:  severity,
		Tag:       tag,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}
