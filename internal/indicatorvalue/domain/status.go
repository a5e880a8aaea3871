package domain

import "github.com/smallbiznis/energyscope/pkg/errs"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusValidated Status = "validated"
	StatusRejected  Status = "rejected"
)

// Action is a workflow move applied to an existing value.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionEdit     Action = "edit"
	ActionValidate Action = "validate"
	ActionReject   Action = "reject"
)

var (
	ErrValueValidated    = errs.Forbidden("value_validated", "validated values can no longer be edited")
	ErrInvalidTransition = errs.Forbidden("invalid_transition", "action is not allowed in the value's current status")
)

// transitions is the full state machine. Missing pairs are illegal moves.
var transitions = map[Status]map[Action]Status{
	StatusDraft: {
		ActionSubmit: StatusSubmitted,
		ActionEdit:   StatusSubmitted,
	},
	StatusSubmitted: {
		ActionEdit:     StatusSubmitted,
		ActionValidate: StatusValidated,
		ActionReject:   StatusRejected,
	},
	StatusRejected: {
		ActionEdit:   StatusSubmitted,
		ActionSubmit: StatusSubmitted,
	},
	StatusValidated: {},
}

// Next returns the status reached by applying action to from.
func Next(from Status, action Action) (Status, error) {
	if from == StatusValidated && action == ActionEdit {
		return "", ErrValueValidated
	}
	to, ok := transitions[from][action]
	if !ok {
		return "", ErrInvalidTransition.WithMessagef("cannot %s a %s value", action, from)
	}
	return to, nil
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no action leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}
