package invalidation

import (
	"encoding/json"
	"testing"
	"time"
)

func validEvent() Event {
	return Event{
		Version: 1,
		Op:      "update",
		Layer:   "geodanmark_2023_12_5cm",
		TS:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Source:  "ingest-job",
	}
}

func TestValidate_AcceptsAllOps(t *testing.T) {
	for _, op := range []string{"insert", "update", "delete"} {
		ev := validEvent()
		ev.Op = op
		if err := ev.Validate(); err != nil {
			t.Errorf("op %q rejected: %v", op, err)
		}
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Event)
	}{
		{"wrong version", func(e *Event) { e.Version = 2 }},
		{"unknown op", func(e *Event) { e.Op = "truncate" }},
		{"blank layer", func(e *Event) { e.Layer = "  " }},
		{"zero timestamp", func(e *Event) { e.TS = time.Time{} }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ev := validEvent()
			c.mutate(&ev)
			if err := ev.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEvent_JSONRoundTrip(t *testing.T) {
	in := validEvent()
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Event
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip changed the event:\n in=%+v\nout=%+v", in, out)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("decoded event invalid: %v", err)
	}
}
