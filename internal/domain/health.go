package domain

// HealthError: описание причины DOWN.
type HealthError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Health: состояние executable, которое он сам сообщает runtime.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Error   *HealthError   `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Up возвращает здоровое состояние с необязательными деталями.
func Up(details map[string]any) Health {
	return Health{Status: HealthUp, Details: details}
}

// Down возвращает состояние DOWN с причиной err.
func Down(err error) Health {
	h := Health{Status: HealthDown}
	if err != nil {
		h.Error = &HealthError{Message: err.Error()}
	}
	return h
}

// Unknown возвращает состояние UNKNOWN.
func Unknown() Health {
	return Health{Status: HealthUnknown}
}
