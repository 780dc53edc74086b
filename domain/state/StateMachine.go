package state

// Status is the lifecycle status of a single step execution.
type Status string

const (
	Waiting    Status = "waiting"
	Pending    Status = "pending"
	InProgress Status = "in_progress"
	Completed  Status = "completed"
	Skipped    Status = "skipped"
)

type Transition struct {
	Name string `json:"name"`
	From Status `json:"from"`
	To   Status `json:"to"`
}

// stateless object, just used for state computing
type StateMachine struct {
	States      []Status     `json:"states"`
	Transitions []Transition `json:"transitions"`
}

// StepLifecycle is the transition table of a step execution:
//
//	            WAITING   PENDING     IN_PROGRESS  COMPLETED   SKIPPED
//	WAITING     -         V promote   X            X           V skip
//	PENDING     X         -           V begin      V decide    V skip
//	IN_PROGRESS X         X           -            V decide    V skip
//
// COMPLETED and SKIPPED are terminal.
var StepLifecycle = NewStateMachine(
	[]Status{Waiting, Pending, InProgress, Completed, Skipped},
	[]Transition{
		{Name: "promote", From: Waiting, To: Pending},
		{Name: "skip", From: Waiting, To: Skipped},
		{Name: "begin", From: Pending, To: InProgress},
		{Name: "decide", From: Pending, To: Completed},
		{Name: "skip", From: Pending, To: Skipped},
		{Name: "decide", From: InProgress, To: Completed},
		{Name: "skip", From: InProgress, To: Skipped},
	})

func NewStateMachine(states []Status, transitions []Transition) *StateMachine {
	return &StateMachine{States: states, Transitions: transitions}
}

// AvailableTransitions lists transitions out of from, or into to. Empty arguments match any status.
func (sm *StateMachine) AvailableTransitions(from Status, to Status) []Transition {
	r := []Transition{}
	for _, transition := range sm.Transitions {
		if (from == "" || from == transition.From) && (to == "" || to == transition.To) {
			r = append(r, transition)
		}
	}
	return r
}

func (sm *StateMachine) CanTransit(from Status, to Status) bool {
	if from == "" || to == "" {
		return false
	}
	return len(sm.AvailableTransitions(from, to)) > 0
}

// IsTerminal reports whether no transition leaves the status.
func (sm *StateMachine) IsTerminal(s Status) bool {
	return len(sm.AvailableTransitions(s, "")) == 0
}

// Sources lists the statuses having a transition into to, in declaration order.
func (sm *StateMachine) Sources(to Status) []Status {
	r := []Status{}
	for _, s := range sm.States {
		if sm.CanTransit(s, to) {
			r = append(r, s)
		}
	}
	return r
}
