package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"safeher/internal/models"
	"safeher/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type voiceFixture struct {
	detector *VoiceTriggerDetector
	speech   *ClientSpeechRecognizer
	sink     *recordingSink
	triggers chan models.TriggerMethod
}

func newVoiceFixture(t *testing.T) *voiceFixture {
	t.Helper()
	f := &voiceFixture{
		speech:   NewClientSpeechRecognizer(),
		sink:     &recordingSink{},
		triggers: make(chan models.TriggerMethod, 4),
	}
	trigger := func(_ context.Context, method models.TriggerMethod) (models.DispatchResult, error) {
		f.triggers <- method
		return models.DispatchResult{}, nil
	}
	f.detector = NewVoiceTriggerDetector("s1", []string{"danger", "help me", "emergency"}, f.speech, trigger, f.sink, nil, nil, nopLogger())
	return f
}

func (f *voiceFixture) feed(t *testing.T, index int, text string, final bool) {
	t.Helper()
	require.True(t, f.speech.Feed(models.SpeechEvent{Kind: models.SpeechEventResult, Index: index, Text: text, Final: final}))
}

func (f *voiceFixture) waitState(t *testing.T, want models.VoiceState) {
	t.Helper()
	require.Eventually(t, func() bool { return f.detector.State() == want }, time.Second, 5*time.Millisecond)
}

func TestStartWithoutSpeechSupport(t *testing.T) {
	f := newVoiceFixture(t)
	f.speech.SetSupported(false)

	err := f.detector.Start(context.Background())
	assert.ErrorIs(t, err, ErrSpeechUnsupported)
	assert.Equal(t, models.VoiceStateIdle, f.detector.State())

	n := f.sink.last()
	assert.Equal(t, "Voice Recognition Not Supported", n.Title)
	assert.Equal(t, "Your browser doesn't support voice recognition. Use the SOS button instead.", n.Description)
	assert.Equal(t, models.NoticeSeverityDestructive, n.Severity)
}

type brokenRecognizer struct{}

func (brokenRecognizer) Supported() bool { return true }

func (brokenRecognizer) Start(context.Context) (<-chan models.SpeechEvent, error) {
	return nil, errors.New("microphone busy")
}

func (brokenRecognizer) Stop() {}

func voiceSessions(t *testing.T, m *metrics.Metrics, outcome string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "safeher_voice_sessions_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestStartFailuresAreCountedByCause(t *testing.T) {
	m := metrics.NewMetrics()

	sink := &recordingSink{}
	broken := NewVoiceTriggerDetector("s1", []string{"danger"}, brokenRecognizer{}, nil, sink, nil, m, nopLogger())
	err := broken.Start(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSpeechUnsupported)
	assert.Contains(t, err.Error(), "microphone busy")
	assert.Empty(t, sink.titles())

	speech := NewClientSpeechRecognizer()
	speech.SetSupported(false)
	unsupported := NewVoiceTriggerDetector("s2", []string{"danger"}, speech, nil, sink, nil, m, nopLogger())
	assert.ErrorIs(t, unsupported.Start(context.Background()), ErrSpeechUnsupported)

	assert.Equal(t, 1.0, voiceSessions(t, m, "error"))
	assert.Equal(t, 1.0, voiceSessions(t, m, "unsupported"))
}

func TestStartListening(t *testing.T) {
	f := newVoiceFixture(t)

	require.NoError(t, f.detector.Start(context.Background()))
	assert.Equal(t, models.VoiceStateListening, f.detector.State())
	assert.Equal(t, "Voice Detection Active", f.sink.last().Title)

	assert.ErrorIs(t, f.detector.Start(context.Background()), ErrAlreadyListening)
}

func TestTriggerPhraseAcrossFragments(t *testing.T) {
	f := newVoiceFixture(t)
	require.NoError(t, f.detector.Start(context.Background()))

	f.feed(t, 0, "I think ", false)
	f.feed(t, 0, "I think I am ", true)
	f.feed(t, 1, "in Danger", false)

	select {
	case method := <-f.triggers:
		assert.Equal(t, models.TriggerMethodVoice, method)
	case <-time.After(time.Second):
		t.Fatal("trigger was not raised")
	}

	assert.Equal(t, models.VoiceStateTriggerDetected, f.detector.State())
	assert.Equal(t, "i think i am in danger", f.detector.Transcript())
	assert.False(t, f.speech.Feed(models.SpeechEvent{Kind: models.SpeechEventResult, Text: "more"}))
}

func TestInterimFragmentIsReplaced(t *testing.T) {
	f := newVoiceFixture(t)
	require.NoError(t, f.detector.Start(context.Background()))

	f.feed(t, 0, "help", false)
	f.feed(t, 0, "hello", true)
	f.feed(t, 1, " me", false)

	require.Eventually(t, func() bool { return f.detector.Transcript() == "hello me" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.VoiceStateListening, f.detector.State())
	assert.Empty(t, f.triggers)
}

func TestCaptureErrorStopsListening(t *testing.T) {
	f := newVoiceFixture(t)
	require.NoError(t, f.detector.Start(context.Background()))

	require.True(t, f.speech.Feed(models.SpeechEvent{Kind: models.SpeechEventError, Error: "network"}))
	f.waitState(t, models.VoiceStateIdle)

	require.Eventually(t, func() bool { return f.sink.last().Title == "Voice Detection Stopped" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.NoticeSeverityDestructive, f.sink.last().Severity)
	assert.Empty(t, f.triggers)
}

func TestEndOfCaptureReturnsToIdle(t *testing.T) {
	f := newVoiceFixture(t)
	require.NoError(t, f.detector.Start(context.Background()))

	require.True(t, f.speech.Feed(models.SpeechEvent{Kind: models.SpeechEventEnd}))
	f.waitState(t, models.VoiceStateIdle)
	assert.NotContains(t, f.sink.titles(), "Voice Detection Stopped")
}

func TestStopListening(t *testing.T) {
	f := newVoiceFixture(t)
	require.NoError(t, f.detector.Start(context.Background()))

	require.NoError(t, f.detector.Stop())
	assert.Equal(t, models.VoiceStateIdle, f.detector.State())
	assert.False(t, f.speech.Feed(models.SpeechEvent{Kind: models.SpeechEventResult, Text: "danger"}))
	assert.ErrorIs(t, f.detector.Stop(), ErrNotListening)
}

func TestRestartAfterTrigger(t *testing.T) {
	f := newVoiceFixture(t)
	require.NoError(t, f.detector.Start(context.Background()))
	f.feed(t, 0, "emergency", true)
	<-f.triggers
	f.waitState(t, models.VoiceStateTriggerDetected)

	require.NoError(t, f.detector.Start(context.Background()))
	assert.Equal(t, models.VoiceStateListening, f.detector.State())
	assert.Empty(t, f.detector.Transcript())
}

func TestMatchTriggerPhrase(t *testing.T) {
	phrases := []string{"danger", "help me", "emergency"}

	cases := map[string]string{
		"i am in danger":         "danger",
		"please HELP ME now":     "help me",
		"this is an emergency!":  "emergency",
		"help":                   "",
		"helping me":             "",
		"":                       "",
		"endangered species act": "danger",
	}
	for transcript, want := range cases {
		assert.Equal(t, want, MatchTriggerPhrase(transcript, phrases), transcript)
	}
}
