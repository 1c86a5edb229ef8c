package conversation

import (
	"errors"
	"testing"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		current Status
		trigger Trigger
		want    Status
		wantErr error
	}{
		{"visitor on unresolved stays", StatusUnresolved, TriggerVisitorMessage, StatusUnresolved, nil},
		{"visitor on escalated stays", StatusEscalated, TriggerVisitorMessage, StatusEscalated, nil},
		{"visitor on resolved rejected", StatusResolved, TriggerVisitorMessage, StatusResolved, ErrClosed},
		{"operator takes over unresolved", StatusUnresolved, TriggerOperatorMessage, StatusEscalated, nil},
		{"operator on escalated stays", StatusEscalated, TriggerOperatorMessage, StatusEscalated, nil},
		{"operator reopens resolved", StatusResolved, TriggerOperatorMessage, StatusEscalated, nil},
		{"agent escalates unresolved", StatusUnresolved, TriggerAgentEscalate, StatusEscalated, nil},
		{"agent resolves unresolved", StatusUnresolved, TriggerAgentResolve, StatusResolved, nil},
		{"agent resolves escalated", StatusEscalated, TriggerAgentResolve, StatusResolved, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Transition(tc.current, tc.trigger)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if err == nil && got != tc.want {
				t.Fatalf("next = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestTransition_UnknownTrigger(t *testing.T) {
	if _, err := Transition(StatusUnresolved, Trigger("bogus")); !errors.Is(err, ErrInvalidTrigger) {
		t.Fatalf("err = %v, want ErrInvalidTrigger", err)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusUnresolved, StatusEscalated, StatusResolved} {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if Status("open").Valid() {
		t.Fatalf("unknown status should be invalid")
	}
}
