package sgw

import "testing"

func TestSpeakerLabelCallerInDirectionIn(t *testing.T) {
	if got := SpeakerLabel(RoleModeCallerIn, DirIn, "200", "+3460000", "Ana"); got != "Ana" {
		t.Errorf("got %q, want Ana", got)
	}
	if got := SpeakerLabel(RoleModeCallerIn, DirIn, "200", "+3460000", ""); got != "+3460000" {
		t.Errorf("got %q, want caller number", got)
	}
	if got := SpeakerLabel(RoleModeCallerIn, DirIn, "200", "", ""); got != "Caller" {
		t.Errorf("got %q, want fallback Caller", got)
	}
}

func TestSpeakerLabelCallerInDirectionOut(t *testing.T) {
	if got := SpeakerLabel(RoleModeCallerIn, DirOut, "200", "+3460000", "Ana"); got != "200" {
		t.Errorf("got %q, want extension", got)
	}
	if got := SpeakerLabel(RoleModeCallerIn, DirOut, "", "+3460000", "Ana"); got != "Agent" {
		t.Errorf("got %q, want fallback Agent", got)
	}
}

func TestSpeakerLabelAgentInInverted(t *testing.T) {
	if got := SpeakerLabel(RoleModeAgentIn, DirIn, "200", "+3460000", "Ana"); got != "200" {
		t.Errorf("got %q, want extension (inverted)", got)
	}
	if got := SpeakerLabel(RoleModeAgentIn, DirOut, "200", "+3460000", "Ana"); got != "Ana" {
		t.Errorf("got %q, want caller name (inverted)", got)
	}
}

func TestFromTo(t *testing.T) {
	from, to := FromTo(RoleModeCallerIn, "+346", "200")
	if from != "+346" || to != "200" {
		t.Errorf("caller-in FromTo = (%q,%q)", from, to)
	}
	from, to = FromTo(RoleModeAgentIn, "+346", "200")
	if from != "200" || to != "+346" {
		t.Errorf("agent-in FromTo = (%q,%q)", from, to)
	}
}
