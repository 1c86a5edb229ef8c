package conversation

// Status is the conversation lifecycle state. unresolved is AI-owned,
// escalated is human-owned (the agent is silenced), resolved is
// terminal for visitor traffic but re-enterable by operators.
type Status string

const (
	StatusUnresolved Status = "unresolved"
	StatusEscalated  Status = "escalated"
	StatusResolved   Status = "resolved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUnresolved, StatusEscalated, StatusResolved:
		return true
	}
	return false
}

// AgentOwned reports whether the next reply belongs to the agent.
func (s Status) AgentOwned() bool { return s == StatusUnresolved }

// Trigger is a state machine input.
type Trigger string

const (
	TriggerVisitorMessage  Trigger = "visitor_message"
	TriggerOperatorMessage Trigger = "operator_message"
	TriggerAgentEscalate   Trigger = "agent_escalate"
	TriggerAgentResolve    Trigger = "agent_resolve"
)

// Transition is the single authoritative rule set for status changes.
// Every caller goes through here instead of comparing statuses inline.
//
//	unresolved + visitor message   -> unresolved (agent replies)
//	escalated  + visitor message   -> escalated  (append only)
//	resolved   + visitor message   -> ErrClosed
//	unresolved + operator message  -> escalated  (forced takeover)
//	escalated  + operator message  -> escalated
//	resolved   + operator message  -> escalated  (reopen)
//	any        + agent escalate    -> escalated
//	any        + agent resolve     -> resolved
func Transition(current Status, trigger Trigger) (Status, error) {
	switch trigger {
	case TriggerVisitorMessage:
		if current == StatusResolved {
			return current, ErrClosed
		}
		return current, nil
	case TriggerOperatorMessage:
		return StatusEscalated, nil
	case TriggerAgentEscalate:
		return StatusEscalated, nil
	case TriggerAgentResolve:
		return StatusResolved, nil
	}
	return current, ErrInvalidTrigger
}
