package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"safeher/internal/models"
	"safeher/pkg/logger"
	"safeher/pkg/metrics"
	"safeher/pkg/websocket"
)

const (
	speechEventBuffer  = 64
	maxSpeechFragments = 512
)

// SpeechRecognizer is a continuous capture session with interim results.
type SpeechRecognizer interface {
	Supported() bool
	Start(ctx context.Context) (<-chan models.SpeechEvent, error)
	Stop()
}

// ClientSpeechRecognizer relays recognition results produced on the client device.
type ClientSpeechRecognizer struct {
	mu        sync.Mutex
	supported bool
	events    chan models.SpeechEvent
}

func NewClientSpeechRecognizer() *ClientSpeechRecognizer {
	return &ClientSpeechRecognizer{supported: true}
}

// SetSupported records whether the client can recognize speech at all.
func (r *ClientSpeechRecognizer) SetSupported(supported bool) {
	r.mu.Lock()
	r.supported = supported
	r.mu.Unlock()
}

func (r *ClientSpeechRecognizer) Supported() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.supported
}

func (r *ClientSpeechRecognizer) Start(_ context.Context) (<-chan models.SpeechEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.supported {
		return nil, ErrSpeechUnsupported
	}
	if r.events != nil {
		close(r.events)
	}
	r.events = make(chan models.SpeechEvent, speechEventBuffer)
	return r.events, nil
}

func (r *ClientSpeechRecognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.events != nil {
		close(r.events)
		r.events = nil
	}
}

// Feed hands an event to the running capture. It reports false when nothing is
// capturing or the buffer is full.
func (r *ClientSpeechRecognizer) Feed(ev models.SpeechEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.events == nil {
		return false
	}
	select {
	case r.events <- ev:
		return true
	default:
		return false
	}
}

// TriggerFunc starts an emergency dispatch.
type TriggerFunc func(ctx context.Context, method models.TriggerMethod) (models.DispatchResult, error)

// PublishFunc pushes a realtime update to the session's clients.
type PublishFunc func(msgType string, data map[string]interface{})

// VoiceTriggerDetector listens for trigger phrases and raises a voice emergency when one
// shows up in the accumulated transcript.
type VoiceTriggerDetector struct {
	mu         sync.Mutex
	sessionID  string
	state      models.VoiceState
	fragments  []string
	transcript string
	phrases    []string
	generation uint64
	cancel     context.CancelFunc
	recognizer SpeechRecognizer
	trigger    TriggerFunc
	notices    NoticeSink
	publish    PublishFunc
	metrics    *metrics.Metrics
	log        *logger.Logger
}

func NewVoiceTriggerDetector(sessionID string, phrases []string, recognizer SpeechRecognizer, trigger TriggerFunc, notices NoticeSink, publish PublishFunc, m *metrics.Metrics, log *logger.Logger) *VoiceTriggerDetector {
	return &VoiceTriggerDetector{
		sessionID:  sessionID,
		state:      models.VoiceStateIdle,
		phrases:    normalizePhrases(phrases),
		recognizer: recognizer,
		trigger:    trigger,
		notices:    notices,
		publish:    publish,
		metrics:    m,
		log:        log.WithSessionID(sessionID).WithField("component", "voice"),
	}
}

// Start begins a listening period. It is allowed from Idle and TriggerDetected.
func (d *VoiceTriggerDetector) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.state == models.VoiceStateListening {
		d.mu.Unlock()
		return ErrAlreadyListening
	}

	var events <-chan models.SpeechEvent
	err := ErrSpeechUnsupported
	if d.recognizer != nil && d.recognizer.Supported() {
		events, err = d.recognizer.Start(ctx)
	}
	if err != nil {
		d.state = models.VoiceStateIdle
		d.mu.Unlock()

		if errors.Is(err, ErrSpeechUnsupported) {
			d.metrics.RecordVoiceSessionEnd("unsupported")
			d.post(ctx, destructiveNotice("Voice Recognition Not Supported", "Your browser doesn't support voice recognition. Use the SOS button instead."))
			return err
		}
		d.metrics.RecordVoiceSessionEnd("error")
		return fmt.Errorf("failed to start speech capture: %w", err)
	}

	d.generation++
	gen := d.generation
	d.state = models.VoiceStateListening
	d.fragments = nil
	d.transcript = ""
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	d.mu.Unlock()

	go d.listen(runCtx, gen, events)

	d.log.LogVoiceEvent(d.sessionID, "listening_started", map[string]interface{}{"phrases": d.phrases})
	d.post(ctx, notice("Voice Detection Active", "Say 'I am in danger' to trigger emergency alert"))
	d.publishState(models.VoiceStateListening)
	return nil
}

// Stop ends the listening period without triggering.
func (d *VoiceTriggerDetector) Stop() error {
	d.mu.Lock()
	if d.state != models.VoiceStateListening {
		d.mu.Unlock()
		return ErrNotListening
	}
	d.endLocked()
	d.mu.Unlock()

	d.metrics.RecordVoiceSessionEnd("stopped")
	d.log.LogVoiceEvent(d.sessionID, "listening_stopped", nil)
	d.publishState(models.VoiceStateIdle)
	return nil
}

// Close stops capture if it is running. Used when the session goes away.
func (d *VoiceTriggerDetector) Close() {
	_ = d.Stop()
}

func (d *VoiceTriggerDetector) State() models.VoiceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Transcript is the lowercased concatenation of the fragments heard so far.
func (d *VoiceTriggerDetector) Transcript() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transcript
}

func (d *VoiceTriggerDetector) Status() models.VoiceStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	phrases := make([]string, len(d.phrases))
	copy(phrases, d.phrases)
	return models.VoiceStatus{State: d.state, Transcript: d.transcript, Phrases: phrases}
}

func (d *VoiceTriggerDetector) listen(ctx context.Context, gen uint64, events <-chan models.SpeechEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				d.finish(gen, "ended", "")
				return
			}
			switch ev.Kind {
			case models.SpeechEventResult:
				if phrase, matched := d.apply(gen, ev); matched {
					d.triggered(ctx, phrase)
					return
				}
			case models.SpeechEventError:
				d.finish(gen, "error", ev.Error)
				return
			case models.SpeechEventEnd:
				d.finish(gen, "ended", "")
				return
			}
		}
	}
}

// apply records a fragment and reports whether the transcript now holds a phrase.
func (d *VoiceTriggerDetector) apply(gen uint64, ev models.SpeechEvent) (string, bool) {
	if ev.Index < 0 || ev.Index >= maxSpeechFragments {
		return "", false
	}

	d.mu.Lock()
	if gen != d.generation || d.state != models.VoiceStateListening {
		d.mu.Unlock()
		return "", false
	}

	for len(d.fragments) <= ev.Index {
		d.fragments = append(d.fragments, "")
	}
	d.fragments[ev.Index] = ev.Text
	d.transcript = strings.ToLower(strings.Join(d.fragments, ""))
	transcript := d.transcript

	phrase := MatchTriggerPhrase(transcript, d.phrases)
	if phrase != "" {
		d.state = models.VoiceStateTriggerDetected
		d.cancel()
		d.cancel = nil
		d.recognizer.Stop()
	}
	d.mu.Unlock()

	if d.publish != nil {
		d.publish(websocket.TypeTranscript, map[string]interface{}{"transcript": transcript, "final": ev.Final})
	}
	return phrase, phrase != ""
}

func (d *VoiceTriggerDetector) triggered(ctx context.Context, phrase string) {
	d.metrics.RecordVoiceTrigger()
	d.metrics.RecordVoiceSessionEnd("triggered")
	d.log.LogVoiceEvent(d.sessionID, "trigger_detected", map[string]interface{}{"phrase": phrase})
	d.publishState(models.VoiceStateTriggerDetected)

	if d.trigger == nil {
		return
	}
	// The listening context is already cancelled at this point.
	if _, err := d.trigger(context.WithoutCancel(ctx), models.TriggerMethodVoice); err != nil {
		d.log.WithError(err).Warn("voice trigger did not start a dispatch")
	}
}

func (d *VoiceTriggerDetector) finish(gen uint64, outcome, reason string) {
	d.mu.Lock()
	if gen != d.generation || d.state != models.VoiceStateListening {
		d.mu.Unlock()
		return
	}
	d.endLocked()
	d.mu.Unlock()

	d.metrics.RecordVoiceSessionEnd(outcome)
	d.log.LogVoiceEvent(d.sessionID, "listening_"+outcome, map[string]interface{}{"reason": reason})

	if outcome == "error" {
		description := "Speech recognition stopped unexpectedly. Start voice detection again or use the SOS button."
		if reason != "" {
			description = fmt.Sprintf("Speech recognition error: %s. Start voice detection again or use the SOS button.", reason)
		}
		d.post(context.Background(), destructiveNotice("Voice Detection Stopped", description))
	}
	d.publishState(models.VoiceStateIdle)
}

// endLocked expects d.mu to be held.
func (d *VoiceTriggerDetector) endLocked() {
	d.state = models.VoiceStateIdle
	d.generation++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.recognizer.Stop()
}

func (d *VoiceTriggerDetector) post(ctx context.Context, n models.Notice) {
	if d.notices != nil {
		d.notices.Post(ctx, n)
	}
}

func (d *VoiceTriggerDetector) publishState(state models.VoiceState) {
	if d.publish != nil {
		d.publish(websocket.TypeVoiceState, map[string]interface{}{"state": state})
	}
}

// MatchTriggerPhrase returns the first phrase contained in transcript, or "".
func MatchTriggerPhrase(transcript string, phrases []string) string {
	transcript = strings.ToLower(transcript)
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" && strings.Contains(transcript, phrase) {
			return phrase
		}
	}
	return ""
}

func normalizePhrases(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
