package sgw

// Direction is the RTP flow direction an SgwSession was bound on.
type Direction string

const (
	DirIn  Direction = "in"
	DirOut Direction = "out"
)

// RoleMode selects which direction maps to the caller vs. the agent.
type RoleMode string

const (
	RoleModeCallerIn RoleMode = "caller-in"
	RoleModeAgentIn  RoleMode = "agent-in"
)

// SpeakerLabel resolves the human-facing label for a transcript event,
// per spec.md §4.4/§8: caller label resolves callerName > caller >
// "Caller"; agent label resolves extension > "Agent".
func SpeakerLabel(mode RoleMode, dir Direction, extension, caller, callerName string) string {
	isCallerDirection := (mode == RoleModeCallerIn && dir == DirIn) || (mode == RoleModeAgentIn && dir == DirOut)
	if isCallerDirection {
		if callerName != "" {
			return callerName
		}
		if caller != "" {
			return caller
		}
		return "Caller"
	}
	if extension != "" {
		return extension
	}
	return "Agent"
}

// FromTo returns the (from, to) pair published in a call-start event,
// derived from role mode per spec.md §4.4: the party on the "in"
// direction is "from" (the caller in caller-in mode, the extension in
// agent-in mode), the other is "to".
func FromTo(mode RoleMode, caller, extension string) (from, to string) {
	if caller == "" {
		caller = "Caller"
	}
	if extension == "" {
		extension = "Agent"
	}
	switch mode {
	case RoleModeAgentIn:
		return extension, caller
	default: // caller-in
		return caller, extension
	}
}
