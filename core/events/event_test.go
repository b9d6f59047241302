package events

import "testing"

func TestCaptureEmitter(t *testing.T) {
	capture := &CaptureEmitter{}
	capture.Emit(&Event{Type: "a", Attributes: map[string]string{"k": "1"}})
	capture.Emit(&Event{Type: "b"})
	capture.Emit(&Event{Type: "a"})
	capture.Emit(nil)

	if len(capture.Events) != 3 {
		t.Fatalf("expected 3 captured events, got %d", len(capture.Events))
	}
	byType := capture.ByType("a")
	if len(byType) != 2 {
		t.Fatalf("expected 2 events of type a, got %d", len(byType))
	}
	if byType[0].Attributes["k"] != "1" {
		t.Fatalf("attributes must survive capture: %v", byType[0].Attributes)
	}
	if len(capture.ByType("missing")) != 0 {
		t.Fatalf("unknown type must match nothing")
	}
}

func TestNoopEmitter(t *testing.T) {
	NoopEmitter{}.Emit(&Event{Type: "a"})
	NoopEmitter{}.Emit(nil)
}
