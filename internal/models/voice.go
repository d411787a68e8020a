package models

type VoiceState string
type SpeechEventKind string

const (
	VoiceStateIdle            VoiceState = "idle"
	VoiceStateListening       VoiceState = "listening"
	VoiceStateTriggerDetected VoiceState = "trigger_detected"

	SpeechEventResult SpeechEventKind = "result"
	SpeechEventError  SpeechEventKind = "error"
	SpeechEventEnd    SpeechEventKind = "end"
)

// SpeechEvent is one callback from a speech capture session. Result events carry the
// fragment at Index; a later fragment at the same index replaces an interim one.
type SpeechEvent struct {
	Kind  SpeechEventKind `json:"kind"`
	Index int             `json:"index"`
	Text  string          `json:"text"`
	Final bool            `json:"final"`
	Error string          `json:"error,omitempty"`
}

type VoiceStatus struct {
	State      VoiceState `json:"state"`
	Transcript string     `json:"transcript"`
	Phrases    []string   `json:"phrases"`
}
