package wizard

import "time"

// NameState tracks the chosen name of one template extracted from a file.
//
// Valid is only meaningful once Validate and Validating are both false.
// Generation increases on every edit; a check result carrying an older
// generation is stale and ignored.
type NameState struct {
	ID          string    `json:"id"`
	InitialName string    `json:"initialName"`
	CurrentName string    `json:"currentName"`
	Valid       bool      `json:"valid"`
	Blur        bool      `json:"blur"`
	Validating  bool      `json:"validating"`
	Validate    bool      `json:"validate"`
	Generation  uint64    `json:"generation"`
	EditedAt    time.Time `json:"editedAt"`
	Error       string    `json:"error,omitempty"`
}

// Status is the display state of an entry.
func (s NameState) Status() string {
	switch {
	case s.Validating:
		return "validating"
	case s.Validate:
		return "unchecked"
	case s.Valid:
		return "valid"
	case s.CurrentName == "":
		return "empty"
	default:
		return "invalid"
	}
}

// ShowError reports whether the entry's error decoration should render.
func (s NameState) ShowError() bool {
	return s.Blur && !s.Validate && !s.Validating && !s.Valid
}

// NameStates maps entry id to state. Reduce never mutates its input.
type NameStates map[string]NameState

// ActionKind names a NameStates transition.
type ActionKind int

const (
	ActionAdd ActionKind = iota
	ActionEdit
	ActionBlur
	ActionFocus
	ActionCheckStarted
	ActionCheckFinished
	ActionCheckFailed
	ActionClear
)

// Action is one input to Reduce. Fields are read per kind: Name for Add
// and Edit; Generation for the Check kinds; Exists for CheckFinished; Err
// for CheckFailed.
type Action struct {
	Kind       ActionKind
	ID         string
	Name       string
	Generation uint64
	Exists     bool
	Err        error
}

// Reduce applies a to states and returns the new states. Actions for an
// unknown id, and check results for a superseded generation, return
// states unchanged.
func Reduce(states NameStates, a Action, now time.Time) NameStates {
	if a.Kind == ActionClear {
		return NameStates{}
	}

	cur, ok := states[a.ID]
	if !ok && a.Kind != ActionAdd {
		return states
	}

	next := cur
	switch a.Kind {
	case ActionAdd:
		next = NameState{
			ID:          a.ID,
			InitialName: a.Name,
			CurrentName: a.Name,
			Validate:    a.Name != "",
		}

	case ActionEdit:
		next.CurrentName = a.Name
		next.Generation++
		next.Valid = false
		next.Validating = false
		next.Validate = true
		next.EditedAt = now
		next.Error = ""
		if a.Name == "" {
			// Nothing to look up; an empty name is never valid.
			next.Validate = false
		}

	case ActionBlur:
		next.Blur = true

	case ActionFocus:
		next.Blur = false

	case ActionCheckStarted:
		if a.Generation != cur.Generation || !cur.Validate {
			return states
		}
		next.Validating = true

	case ActionCheckFinished:
		if a.Generation != cur.Generation || !cur.Validating {
			return states
		}
		next.Valid = !a.Exists
		next.Validating = false
		next.Validate = false
		next.Error = ""

	case ActionCheckFailed:
		if a.Generation != cur.Generation || !cur.Validating {
			return states
		}
		next.Valid = false
		next.Validating = false
		next.Validate = false
		if a.Err != nil {
			next.Error = a.Err.Error()
		}

	default:
		return states
	}

	out := make(NameStates, len(states)+1)
	for k, v := range states {
		out[k] = v
	}
	out[a.ID] = next
	return out
}
