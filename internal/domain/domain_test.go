package domain

import (
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
)

func element(props map[string]string) InboundElement {
	return InboundElement{
		ProcessElement: ProcessElement{
			BpmnProcessID:        "myProcess",
			ProcessDefinitionKey: "42",
			ElementID:            "myElement",
			TenantID:             "tenant",
		},
		CorrelationPoint: CorrelationPoint{Kind: CorrelationStartEvent},
		Properties:       props,
	}
}

func TestInboundElement_Type(t *testing.T) {
	el := element(map[string]string{KeyInboundType: "webhook"})
	if el.Type() != "webhook" {
		t.Errorf("expected webhook, got %q", el.Type())
	}
	if err := el.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// Без типа
	el = element(map[string]string{})
	if !errors.Is(el.Validate(), ErrMissingType) {
		t.Error("expected ErrMissingType")
	}
}

func TestInboundElement_ActivationCondition(t *testing.T) {
	el := element(map[string]string{KeyActivationCondition: "cond"})
	if el.ActivationCondition() != "cond" {
		t.Error("activationCondition should be read")
	}

	// Устаревший ключ
	el = element(map[string]string{KeyDeprecatedActivationCondition: "old"})
	if el.ActivationCondition() != "old" {
		t.Error("deprecated activation condition should be used as fallback")
	}
}

func TestInboundElement_DeduplicationID(t *testing.T) {
	t.Run("legacy mode", func(t *testing.T) {
		id, err := element(map[string]string{KeyInboundType: "test"}).DeduplicationID(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "tenant-42-myElement" {
			t.Errorf("expected tenant-42-myElement, got %s", id)
		}
	})

	t.Run("manual mode", func(t *testing.T) {
		id, err := element(map[string]string{
			KeyInboundType: "test", KeyDeduplicationMode: "MANUAL", KeyDeduplicationID: "id",
		}).DeduplicationID(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "id" {
			t.Errorf("expected id, got %s", id)
		}
	})

	t.Run("manual mode without id", func(t *testing.T) {
		_, err := element(map[string]string{
			KeyInboundType: "test", KeyDeduplicationMode: "MANUAL",
		}).DeduplicationID(nil)
		if !errors.Is(err, ErrInvalidDefinition) {
			t.Errorf("expected ErrInvalidDefinition, got %v", err)
		}
	})

	t.Run("auto mode ignores keywords", func(t *testing.T) {
		a := element(map[string]string{KeyInboundType: "test", KeyDeduplicationMode: "AUTO", "property": "value"})
		b := element(map[string]string{KeyInboundType: "test1", KeyDeduplicationMode: "AUTO", "property": "value"})
		c := element(map[string]string{KeyInboundType: "test", KeyDeduplicationMode: "AUTO", "property": "value2"})

		idA, _ := a.DeduplicationID(nil)
		idB, _ := b.DeduplicationID(nil)
		idC, _ := c.DeduplicationID(nil)

		if idA == "" {
			t.Fatal("id should not be empty")
		}
		if idA != idB {
			t.Error("inbound.type must not affect deduplication id")
		}
		if idA == idC {
			t.Error("different properties must give different ids")
		}
	})

	t.Run("auto mode with scope", func(t *testing.T) {
		props := map[string]string{
			KeyInboundType: "test", KeyDeduplicationMode: "AUTO", "property1": "value1", "property2": "value2",
		}
		id1, _ := element(props).DeduplicationID([]string{"property1"})
		id2, _ := element(props).DeduplicationID([]string{"property2"})
		if id1 == id2 {
			t.Error("different scopes must give different ids")
		}
	})
}

func TestInboundElement_ConnectorProperties(t *testing.T) {
	el := element(map[string]string{
		KeyInboundType:         "test",
		KeyResultVariable:      "result",
		KeyActivationCondition: "cond",
		"inbound.context":      "ctx",
	})

	props := el.ConnectorProperties()
	if len(props) != 1 || props["inbound.context"] != "ctx" {
		t.Errorf("unexpected properties: %v", props)
	}
}

func TestInboundElement_MessageTTL(t *testing.T) {
	_, ok, err := element(map[string]string{}).MessageTTL()
	if ok || err != nil {
		t.Error("empty ttl should be absent without error")
	}

	ttl, ok, err := element(map[string]string{KeyMessageTTL: "PT1H"}).MessageTTL()
	if !ok || err != nil || ttl != time.Hour {
		t.Errorf("expected 1h, got %v (ok=%v, err=%v)", ttl, ok, err)
	}

	_, _, err = element(map[string]string{KeyMessageTTL: "1 hour"}).MessageTTL()
	if !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"PT5M", 5 * time.Minute, false},
		{"PT10S", 10 * time.Second, false},
		{"PT0.5S", 500 * time.Millisecond, false},
		{"P1DT2H", 26 * time.Hour, false},
		{"PT1H30M", 90 * time.Minute, false},
		{"-PT1M", -time.Minute, false},
		{"P", 0, true},
		{"PT", 0, true},
		{"P1DT", 0, true},
		{"5m", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseISODuration(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, d)
			}
		})
	}
}

func TestHealthStatus_Priority(t *testing.T) {
	if !(HealthDown.Priority() > HealthUnknown.Priority() && HealthUnknown.Priority() > HealthUp.Priority()) {
		t.Error("priority must be DOWN > UNKNOWN > UP")
	}
}

func TestCorrelationFailure_Strategy(t *testing.T) {
	tests := []struct {
		name    string
		failure *CorrelationFailure
		want    HandlingStrategy
	}{
		{"discarded", ActivationConditionNotMet(true), HandlingStrategy{}},
		{"not discarded", ActivationConditionNotMet(false), HandlingStrategy{Forward: true}},
		{"invalid input", InvalidInput("bad", nil), HandlingStrategy{Forward: true}},
		{"unavailable", EngineStatus(codes.Unavailable, "down"), HandlingStrategy{Forward: true, Retryable: true}},
		{"not found", EngineStatus(codes.NotFound, "missing"), HandlingStrategy{Forward: true}},
		{"other", OtherFailure(errors.New("boom")), HandlingStrategy{Forward: true, Retryable: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.failure.Strategy(); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestExecutableID_Stable(t *testing.T) {
	if ExecutableID("dedup") != ExecutableID("dedup") {
		t.Error("executable id must be deterministic")
	}
	if ExecutableID("a") == ExecutableID("b") {
		t.Error("different deduplication ids must give different executable ids")
	}
}
