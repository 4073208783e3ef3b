package domain

// Ключевые свойства inbound элементов и заголовки outbound заданий.
const (
	KeyResultVariable          = "resultVariable"
	KeyResultExpression        = "resultExpression"
	KeyErrorExpression         = "errorExpression"
	KeyCorrelationRequired     = "correlationRequired"
	KeyCorrelationKeyExpr      = "correlationKeyExpression"
	KeyMessageIDExpression     = "messageIdExpression"
	KeyMessageTTL              = "messageTtl"
	KeyActivationCondition     = "activationCondition"
	KeyConsumeUnmatchedEvents  = "consumeUnmatchedEvents"
	KeyInboundType             = "inbound.type"
	KeyRetryBackoff            = "retryBackoff"
	KeyDeduplicationManualFlag = "deduplicationModeManualFlag"
	KeyDeduplicationMode       = "deduplicationMode"
	KeyDeduplicationID         = "deduplicationId"
	KeyOperation               = "operation"

	// Deprecated: используйте KeyActivationCondition.
	KeyDeprecatedActivationCondition = "inbound.activationCondition"
)

// DeduplicationMode: способ вычисления deduplication ID.
type DeduplicationMode string

const (
	DeduplicationAuto   DeduplicationMode = "AUTO"
	DeduplicationManual DeduplicationMode = "MANUAL"
)

// RuntimeProperties: свойства, которые читает runtime, а не сам коннектор.
var RuntimeProperties = map[string]struct{}{
	KeyInboundType:                   {},
	KeyDeduplicationMode:             {},
	KeyDeduplicationID:               {},
	KeyMessageIDExpression:           {},
	KeyCorrelationKeyExpr:            {},
	KeyDeprecatedActivationCondition: {},
	KeyActivationCondition:           {},
	KeyConsumeUnmatchedEvents:        {},
	KeyMessageTTL:                    {},
}

// DeduplicationExcluded: свойства, не влияющие на deduplication ID.
var DeduplicationExcluded = map[string]struct{}{
	KeyInboundType:                   {},
	KeyDeduplicationMode:             {},
	KeyDeduplicationID:               {},
	KeyMessageIDExpression:           {},
	KeyCorrelationKeyExpr:            {},
	KeyDeprecatedActivationCondition: {},
	KeyActivationCondition:           {},
	KeyMessageTTL:                    {},
	KeyCorrelationRequired:           {},
	KeyDeduplicationManualFlag:       {},
	KeyResultExpression:              {},
	KeyResultVariable:                {},
}

// IsKeyword возвращает true для любого служебного свойства.
func IsKeyword(key string) bool {
	if _, ok := RuntimeProperties[key]; ok {
		return true
	}
	_, ok := DeduplicationExcluded[key]
	return ok
}
