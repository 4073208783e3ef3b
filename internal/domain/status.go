package domain

// HealthStatus: состояние inbound executable.
//
// При слиянии данных нескольких runtime приоритет:
//
//	DOWN > UNKNOWN > UP
type HealthStatus string

const (
	// HealthUp: executable работает.
	HealthUp HealthStatus = "UP"

	// HealthDown: executable упал или не смог активироваться.
	HealthDown HealthStatus = "DOWN"

	// HealthUnknown: состояние ещё не сообщено.
	HealthUnknown HealthStatus = "UNKNOWN"
)

// Priority возвращает вес статуса: чем больше, тем важнее при слиянии.
func (s HealthStatus) Priority() int {
	switch s {
	case HealthDown:
		return 2
	case HealthUnknown:
		return 1
	default:
		return 0
	}
}

// ExecutableState: результат попытки активации executable.
//
// Жизненный цикл:
//
//	(новый) → ACTIVATED → CANCELLED (executable сам запросил отмену)
//	        ↘ FAILED_TO_ACTIVATE
//	        ↘ CONNECTOR_NOT_REGISTERED
//	        ↘ INVALID_DEFINITION
type ExecutableState string

const (
	// StateActivated: Activate завершился без ошибки.
	StateActivated ExecutableState = "ACTIVATED"

	// StateFailedToActivate: Activate вернул ошибку.
	StateFailedToActivate ExecutableState = "FAILED_TO_ACTIVATE"

	// StateNotRegistered: для типа коннектора нет фабрики.
	StateNotRegistered ExecutableState = "CONNECTOR_NOT_REGISTERED"

	// StateInvalidDefinition: элементы группы несовместимы или свойства неверны.
	StateInvalidDefinition ExecutableState = "INVALID_DEFINITION"

	// StateCancelled: executable отменён через Cancel.
	StateCancelled ExecutableState = "CANCELLED"
)

// IsActive возвращает true, если executable обрабатывает события.
func (s ExecutableState) IsActive() bool {
	return s == StateActivated
}
