package model

import (
	"testing"
)

func TestNewOutboxMessage(t *testing.T) {
	msg, err := NewOutboxMessage("loyalty-event", "streak:1:20240430", EventStreakReminder,
		map[string]interface{}{"user_id": 1, "streak_days": 4})
	if err != nil {
		t.Fatalf("NewOutboxMessage() error = %v", err)
	}
	if msg.Payload != `{"streak_days":4,"user_id":1}` {
		t.Errorf("payload = %s", msg.Payload)
	}
	if msg.Status != OutboxStatusPending || msg.MessageKey != "streak:1:20240430" || msg.Topic != "loyalty-event" {
		t.Errorf("message = %+v", msg)
	}

	if _, err := NewOutboxMessage("loyalty-event", "bad", EventStreakReminder, map[string]interface{}{"ch": make(chan int)}); err == nil {
		t.Error("unserializable payload accepted")
	}
}
