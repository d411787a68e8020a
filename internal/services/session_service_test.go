package services

import (
	"context"
	"testing"
	"time"

	"safeher/internal/models"
	"safeher/pkg/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessions(t *testing.T, mutate func(*SessionDependencies)) (SessionService, *fakeBroadcaster) {
	t.Helper()
	hub := &fakeBroadcaster{}
	deps := SessionDependencies{
		Safety:     testSafetyConfig(),
		LinkFormat: "https://maps.google.com/?q=%.6f,%.6f",
		Hub:        hub,
		Notifier:   NewBroadcastNotifier(hub),
		Responder:  &CannedResponder{Text: CannedReply},
		Logger:     nopLogger(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	svc := NewSessionService(deps)
	t.Cleanup(svc.Shutdown)
	return svc, hub
}

func TestCreateAndGetSession(t *testing.T) {
	svc, _ := newSessions(t, nil)

	s, err := svc.Create(context.Background())
	require.NoError(t, err)
	assert.True(t, svc.SessionExists(s.ID))
	assert.Equal(t, 1, svc.Count())

	got, err := svc.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	summary := got.Summary()
	assert.Equal(t, 2, summary.ContactCount)
	assert.Equal(t, 1, summary.MessageCount)
	assert.Equal(t, models.VoiceStateIdle, summary.Voice)
	assert.False(t, summary.DispatchInProgress)
	assert.Nil(t, summary.LastDispatch)
}

func TestCloseSession(t *testing.T) {
	svc, _ := newSessions(t, nil)
	s, err := svc.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Voice.Start(context.Background()))

	require.NoError(t, svc.Close(s.ID))
	assert.Equal(t, models.VoiceStateIdle, s.Voice.State())

	_, err = svc.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.Close(s.ID), ErrSessionNotFound)
}

func TestSessionExpiryStopsListening(t *testing.T) {
	svc, _ := newSessions(t, func(d *SessionDependencies) {
		d.Safety.SessionTTL = 40 * time.Millisecond
	})
	s, err := svc.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Voice.Start(context.Background()))

	require.Eventually(t, func() bool { return !svc.SessionExists(s.ID) }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return s.Voice.State() == models.VoiceStateIdle }, time.Second, 10*time.Millisecond)
}

func TestTranscriptMessageTriggersDispatch(t *testing.T) {
	svc, hub := newSessions(t, nil)
	s, err := svc.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Voice.Start(context.Background()))

	err = svc.HandleClientMessage(context.Background(), s.ID, websocket.Message{
		Type: websocket.TypeTranscript,
		Data: map[string]interface{}{"index": float64(0), "text": "Help me please", "final": true},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.Dispatcher.LastResult() != nil }, time.Second, 5*time.Millisecond)
	last := s.Dispatcher.LastResult()
	assert.Equal(t, models.TriggerMethodVoice, last.Event.Method)
	assert.True(t, last.Success())
	assert.Equal(t, models.VoiceStateTriggerDetected, s.Voice.State())
	assert.Contains(t, hub.types(), websocket.TypeDispatchResult)
	assert.Contains(t, hub.types(), websocket.TypeNotice)
}

func TestTranscriptWithoutListeningIsRejected(t *testing.T) {
	svc, _ := newSessions(t, nil)
	s, err := svc.Create(context.Background())
	require.NoError(t, err)

	err = svc.HandleClientMessage(context.Background(), s.ID, websocket.Message{
		Type: websocket.TypeTranscript,
		Data: map[string]interface{}{"text": "danger"},
	})
	assert.ErrorIs(t, err, ErrNotListening)
}

func TestSpeechCapabilitiesMessage(t *testing.T) {
	svc, _ := newSessions(t, nil)
	s, err := svc.Create(context.Background())
	require.NoError(t, err)

	require.NoError(t, svc.HandleClientMessage(context.Background(), s.ID, websocket.Message{
		Type: websocket.TypeSpeechCapabilities,
		Data: map[string]interface{}{"supported": false},
	}))
	assert.ErrorIs(t, s.Voice.Start(context.Background()), ErrSpeechUnsupported)

	history := s.Notices.History()
	require.NotEmpty(t, history)
	assert.Equal(t, "Voice Recognition Not Supported", history[len(history)-1].Title)
}

func TestLocationMessages(t *testing.T) {
	svc, _ := newSessions(t, nil)
	s, err := svc.Create(context.Background())
	require.NoError(t, err)

	require.NoError(t, svc.HandleClientMessage(context.Background(), s.ID, websocket.Message{
		Type: websocket.TypeLocation,
		Data: map[string]interface{}{"latitude": 28.6139, "longitude": 77.209},
	}))
	last := s.Location.Last()
	require.NotNil(t, last)
	assert.Equal(t, 28.6139, last.Latitude)

	err = svc.HandleClientMessage(context.Background(), s.ID, websocket.Message{
		Type: websocket.TypeLocation,
		Data: map[string]interface{}{"latitude": 200.0, "longitude": 0.0},
	})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestLocationMessageRequiresCoordinates(t *testing.T) {
	svc, _ := newSessions(t, nil)
	s, err := svc.Create(context.Background())
	require.NoError(t, err)

	for _, data := range []map[string]interface{}{
		{},
		{"latitude": 28.6},
		{"latitude": "28.6", "longitude": "77.2"},
		{"latitude": nil, "longitude": 77.2},
	} {
		err := svc.HandleClientMessage(context.Background(), s.ID, websocket.Message{Type: websocket.TypeLocation, Data: data})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "%v", data)
		assert.True(t, verr.Has("latitude") || verr.Has("longitude"))
	}
	assert.Nil(t, s.Location.Last())
}

func TestMalformedLocationDoesNotResolveWaiters(t *testing.T) {
	svc, hub := newSessions(t, func(d *SessionDependencies) {
		d.Safety.LocationSource = "client"
		d.Safety.LocationTimeout = 100 * time.Millisecond
	})
	hub.clients = 1
	s, err := svc.Create(context.Background())
	require.NoError(t, err)

	results := make(chan models.LocationResult, 1)
	go func() { results <- s.Location.Acquire(context.Background()) }()
	require.Eventually(t, func() bool { return contains(hub.types(), websocket.TypeLocationRequest) }, time.Second, 5*time.Millisecond)

	assert.Error(t, svc.HandleClientMessage(context.Background(), s.ID, websocket.Message{
		Type: websocket.TypeLocation,
		Data: map[string]interface{}{},
	}))

	result := <-results
	assert.False(t, result.Available())
	assert.Nil(t, result.Coordinate)
}

func TestClientConnectedPrewarmsLocation(t *testing.T) {
	svc, hub := newSessions(t, func(d *SessionDependencies) {
		d.Safety.LocationSource = "client"
		d.Safety.LocationTimeout = time.Second
	})
	s, err := svc.Create(context.Background())
	require.NoError(t, err)

	// Nothing is asked before a client is there to answer.
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, countOf(hub.types(), websocket.TypeLocationRequest))

	hub.mu.Lock()
	hub.clients = 1
	hub.mu.Unlock()
	svc.ClientConnected(s.ID)

	require.Eventually(t, func() bool { return contains(hub.types(), websocket.TypeLocationRequest) }, time.Second, 5*time.Millisecond)
	require.NoError(t, svc.HandleClientMessage(context.Background(), s.ID, websocket.Message{
		Type: websocket.TypeLocation,
		Data: map[string]interface{}{"latitude": 28.6139, "longitude": 77.209},
	}))
	require.NotNil(t, s.Location.Last())

	// A second client does not ask again once a position is cached.
	svc.ClientConnected(s.ID)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, countOf(hub.types(), websocket.TypeLocationRequest))

	svc.ClientConnected("missing")
}

func TestUnknownMessageAndSession(t *testing.T) {
	svc, _ := newSessions(t, nil)
	s, err := svc.Create(context.Background())
	require.NoError(t, err)

	assert.Error(t, svc.HandleClientMessage(context.Background(), s.ID, websocket.Message{Type: "bogus"}))
	assert.ErrorIs(t, svc.HandleClientMessage(context.Background(), "missing", websocket.Message{Type: websocket.TypeSpeechEnd}), ErrSessionNotFound)
}

func TestTriggerWithDeniedClientLocation(t *testing.T) {
	svc, hub := newSessions(t, func(d *SessionDependencies) {
		d.Safety.LocationSource = "client"
		d.Safety.LocationTimeout = time.Second
	})
	hub.clients = 1
	s, err := svc.Create(context.Background())
	require.NoError(t, err)
	svc.ClientConnected(s.ID)

	// Let the prewarm request settle first.
	require.Eventually(t, func() bool { return contains(hub.types(), websocket.TypeLocationRequest) }, time.Second, 5*time.Millisecond)
	require.NoError(t, svc.HandleClientMessage(context.Background(), s.ID, websocket.Message{
		Type: websocket.TypeLocationError,
		Data: map[string]interface{}{"error": "permission denied"},
	}))

	// Deny the request sent by the dispatch itself.
	go func() {
		deadline := time.Now().Add(time.Second)
		for countOf(hub.types(), websocket.TypeLocationRequest) < 2 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		s.Location.ReportFailure("permission denied")
	}()

	result, err := s.Dispatcher.TriggerEmergency(context.Background(), models.TriggerMethodButton)
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Nil(t, result.Event.Location)
	assert.False(t, s.Dispatcher.InProgress())
}

func TestNoticeHistoryIsBounded(t *testing.T) {
	b := NewNoticeBoard("s1", 3, nil)
	for i := 0; i < 5; i++ {
		b.Post(context.Background(), notice("n", string(rune('a'+i))))
	}

	history := b.History()
	require.Len(t, history, 3)
	assert.Equal(t, "c", history[0].Description)
	assert.Equal(t, "e", history[2].Description)
	assert.Equal(t, models.NoticeSeverityDefault, history[0].Severity)
}

func TestBroadcastNotifierSendsNotice(t *testing.T) {
	hub := &fakeBroadcaster{}
	n := MultiNotifier(NewBroadcastNotifier(hub), nil, NewLogNotifier(nopLogger()))

	n.Notify(context.Background(), "s1", destructiveNotice("Missing Information", "x"))

	require.Len(t, hub.messages, 1)
	msg := hub.messages[0]
	assert.Equal(t, websocket.TypeNotice, msg.Type)
	assert.Equal(t, "s1", msg.SessionID)
	assert.Equal(t, "Missing Information", msg.Data["title"])
	assert.Equal(t, "destructive", msg.Data["severity"])
}

func contains(values []string, want string) bool {
	return countOf(values, want) > 0
}

func countOf(values []string, want string) int {
	n := 0
	for _, v := range values {
		if v == want {
			n++
		}
	}
	return n
}
