package model

import (
	"encoding/json"
	"fmt"
)

// ActionType identifies the kind of mutation a rule action performs.
type ActionType string

// Action type constants.
const (
	ActionSetCategory ActionType = "set_category"
	ActionAddTag      ActionType = "add_tag"
	ActionSetNotes    ActionType = "set_notes"
)

// RuleAction is a single typed mutation applied to a transaction once its
// rule has matched. Actions never error: a payload that no longer makes
// sense degrades to a no-op.
type RuleAction interface {
	// Apply mutates the transaction in place.
	Apply(txn *Transaction)
	// Type identifies the kind of mutation.
	Type() ActionType
}

// SetCategoryAction assigns a category to the transaction.
type SetCategoryAction struct {
	CategoryID int64
}

// Type implements RuleAction.
func (a *SetCategoryAction) Type() ActionType { return ActionSetCategory }

// Apply implements RuleAction.
func (a *SetCategoryAction) Apply(txn *Transaction) {
	id := a.CategoryID
	txn.CategoryID = &id
}

// AddTagAction adds a tag to the transaction's tag set.
type AddTagAction struct {
	Tag string
}

// Type implements RuleAction.
func (a *AddTagAction) Type() ActionType { return ActionAddTag }

// Apply implements RuleAction.
func (a *AddTagAction) Apply(txn *Transaction) {
	txn.AddTag(a.Tag)
}

// SetNotesAction overwrites the transaction's notes. If a rule carries more
// than one, the last wins.
type SetNotesAction struct {
	Notes string
}

// Type implements RuleAction.
func (a *SetNotesAction) Type() ActionType { return ActionSetNotes }

// Apply implements RuleAction.
func (a *SetNotesAction) Apply(txn *Transaction) {
	txn.Notes = a.Notes
}

// invalidAction stands in for an action whose stored form could not be
// understood. Applying it is a no-op.
type invalidAction struct {
	kind ActionType
}

func (a *invalidAction) Type() ActionType       { return a.kind }
func (a *invalidAction) Apply(_ *Transaction) {}

// Actions is an ordered list of rule actions, applied in list order.
type Actions []RuleAction

// actionEnvelope is the stored JSON shape of a single action.
type actionEnvelope struct {
	Type       ActionType `json:"type"`
	CategoryID int64      `json:"category_id,omitempty"`
	Tag        string     `json:"tag,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// MarshalJSON serializes each action with a type discriminator.
func (as Actions) MarshalJSON() ([]byte, error) {
	envelopes := make([]actionEnvelope, 0, len(as))
	for _, a := range as {
		env := actionEnvelope{Type: a.Type()}
		switch action := a.(type) {
		case *SetCategoryAction:
			env.CategoryID = action.CategoryID
		case *AddTagAction:
			env.Tag = action.Tag
		case *SetNotesAction:
			env.Notes = action.Notes
		default:
			return nil, fmt.Errorf("cannot serialize action of type %q", a.Type())
		}
		envelopes = append(envelopes, env)
	}
	return json.Marshal(envelopes)
}

// UnmarshalJSON restores typed actions from their stored form. Unknown types
// decode to a no-op action.
func (as *Actions) UnmarshalJSON(data []byte) error {
	var envelopes []actionEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return fmt.Errorf("failed to decode actions: %w", err)
	}

	actions := make(Actions, 0, len(envelopes))
	for _, env := range envelopes {
		switch env.Type {
		case ActionSetCategory:
			actions = append(actions, &SetCategoryAction{CategoryID: env.CategoryID})
		case ActionAddTag:
			actions = append(actions, &AddTagAction{Tag: env.Tag})
		case ActionSetNotes:
			actions = append(actions, &SetNotesAction{Notes: env.Notes})
		default:
			actions = append(actions, &invalidAction{kind: env.Type})
		}
	}

	*as = actions
	return nil
}
