package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"safeher/internal/config"
	"safeher/internal/models"
	"safeher/pkg/logger"
	"safeher/pkg/maps"
	"safeher/pkg/metrics"
	"safeher/pkg/websocket"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Session holds the state of one visit to the app. Nothing outlives it.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Contacts   *ContactRegistry
	Chat       *ChatSession
	Location   *LocationProvider
	Voice      *VoiceTriggerDetector
	Dispatcher *AlertDispatcher
	Notices    *NoticeBoard
	Speech     *ClientSpeechRecognizer

	closeOnce sync.Once
}

func (s *Session) Summary() models.SessionSummary {
	return models.SessionSummary{
		ID:                 s.ID,
		CreatedAt:          s.CreatedAt,
		ContactCount:       s.Contacts.Len(),
		MessageCount:       s.Chat.Len(),
		Location:           s.Location.Last(),
		Voice:              s.Voice.State(),
		DispatchInProgress: s.Dispatcher.InProgress(),
		LastDispatch:       s.Dispatcher.LastResult(),
	}
}

// FeedSpeech passes a recognition event to the running capture.
func (s *Session) FeedSpeech(ev models.SpeechEvent) error {
	if !s.Speech.Feed(ev) {
		return ErrNotListening
	}
	return nil
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.Voice.Close()
		s.Chat.Close()
	})
}

type SessionService interface {
	Create(ctx context.Context) (*Session, error)
	Get(id string) (*Session, error)
	Close(id string) error
	SessionExists(id string) bool
	HandleClientMessage(ctx context.Context, sessionID string, msg websocket.Message) error
	ClientConnected(sessionID string)
	Count() int
	Shutdown()
}

// SessionDependencies are shared by every session the service creates.
type SessionDependencies struct {
	Safety           *config.SafetyConfig
	LinkFormat       string
	Hub              SessionBroadcaster
	Notifier         Notifier
	ContactChannel   AlertChannel
	AuthorityChannel AlertChannel
	Guard            DispatchGuard
	Geocoder         maps.MapsProvider
	Responder        Responder
	Metrics          *metrics.Metrics
	Logger           *logger.Logger
}

type sessionService struct {
	deps  SessionDependencies
	store *gocache.Cache
	log   *logger.Logger
}

func NewSessionService(deps SessionDependencies) SessionService {
	if deps.Responder == nil {
		deps.Responder = NewCannedResponder(deps.Safety.ChatReplyDelay)
	}
	if deps.Guard == nil {
		deps.Guard = NewLocalDispatchGuard()
	}

	ttl := deps.Safety.SessionTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	s := &sessionService{
		deps:  deps,
		store: gocache.New(ttl, ttl/2),
		log:   deps.Logger.WithField("component", "sessions"),
	}
	s.store.OnEvicted(s.evicted)

	return s
}

func (s *sessionService) Create(ctx context.Context) (*Session, error) {
	id := uuid.New().String()
	session := s.build(id)

	if err := s.store.Add(id, session, gocache.DefaultExpiration); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.deps.Metrics.SessionOpened()
	s.log.WithSessionID(id).Info("session created")
	// A client source has nobody to ask yet; ClientConnected warms it instead.
	if s.deps.Safety.LocationSource != "client" {
		session.Location.Prewarm(ctx)
	}

	return session, nil
}

// Get returns the session and pushes its expiry back.
func (s *sessionService) Get(id string) (*Session, error) {
	v, found := s.store.Get(id)
	if !found {
		return nil, ErrSessionNotFound
	}
	session := v.(*Session)
	// Replace fails if the session was closed in the meantime, which keeps it closed.
	_ = s.store.Replace(id, session, gocache.DefaultExpiration)
	return session, nil
}

func (s *sessionService) Close(id string) error {
	if _, found := s.store.Get(id); !found {
		return ErrSessionNotFound
	}
	s.store.Delete(id)
	return nil
}

func (s *sessionService) SessionExists(id string) bool {
	_, found := s.store.Get(id)
	return found
}

func (s *sessionService) Count() int {
	return s.store.ItemCount()
}

// Shutdown closes every session.
func (s *sessionService) Shutdown() {
	for id := range s.store.Items() {
		s.store.Delete(id)
	}
}

// ClientConnected runs when a websocket client joins a session. It asks the new client
// for a position unless one is already cached.
func (s *sessionService) ClientConnected(sessionID string) {
	session, err := s.Get(sessionID)
	if err != nil {
		return
	}
	if session.Location.Last() == nil {
		session.Location.Prewarm(context.Background())
	}
}

func (s *sessionService) HandleClientMessage(ctx context.Context, sessionID string, msg websocket.Message) error {
	session, err := s.Get(sessionID)
	if err != nil {
		return err
	}

	switch msg.Type {
	case websocket.TypeTranscript:
		return session.FeedSpeech(models.SpeechEvent{
			Kind:  models.SpeechEventResult,
			Index: dataInt(msg.Data, "index"),
			Text:  dataString(msg.Data, "text"),
			Final: dataBool(msg.Data, "final"),
		})
	case websocket.TypeSpeechError:
		return session.FeedSpeech(models.SpeechEvent{
			Kind:  models.SpeechEventError,
			Error: dataString(msg.Data, "error"),
		})
	case websocket.TypeSpeechEnd:
		return session.FeedSpeech(models.SpeechEvent{Kind: models.SpeechEventEnd})
	case websocket.TypeSpeechCapabilities:
		session.Speech.SetSupported(dataBool(msg.Data, "supported"))
		return nil
	case websocket.TypeLocation:
		c, err := coordinateFromData(msg.Data)
		if err != nil {
			return err
		}
		_, err = session.Location.Report(ctx, c)
		return err
	case websocket.TypeLocationError:
		session.Location.ReportFailure(dataString(msg.Data, "error"))
		return nil
	default:
		return fmt.Errorf("unsupported message type %q", msg.Type)
	}
}

func (s *sessionService) build(id string) *Session {
	cfg := s.deps.Safety
	log := s.deps.Logger
	m := s.deps.Metrics
	publish := s.publisher(id)

	board := NewNoticeBoard(id, cfg.NoticeHistory, s.deps.Notifier)
	contacts := NewContactRegistry(id, cfg.Protected, board, m, log)
	location := NewLocationProvider(id, s.locationSource(id), cfg.LocationTimeout, s.deps.Geocoder, m, log)
	dispatcher := NewAlertDispatcher(id, contacts, location, AlertDispatcherConfig{
		ContactChannel:   s.deps.ContactChannel,
		AuthorityChannel: s.deps.AuthorityChannel,
		Guard:            s.deps.Guard,
		Timeout:          cfg.DispatchTimeout,
		LinkFormat:       s.deps.LinkFormat,
	}, board, publish, m, log)
	speech := NewClientSpeechRecognizer()
	voice := NewVoiceTriggerDetector(id, cfg.TriggerPhrases, speech, dispatcher.TriggerEmergency, board, publish, m, log)
	chat := NewChatSession(id, s.deps.Responder, func(msg models.Message) {
		publish(websocket.TypeChatMessage, toData(msg))
	}, m, log)

	return &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		Contacts:   contacts,
		Chat:       chat,
		Location:   location,
		Voice:      voice,
		Dispatcher: dispatcher,
		Notices:    board,
		Speech:     speech,
	}
}

func (s *sessionService) locationSource(id string) LocationSource {
	cfg := s.deps.Safety

	switch cfg.LocationSource {
	case "static":
		return StaticLocationSource{Coordinate: models.Coordinate{
			Latitude:  cfg.StaticLatitude,
			Longitude: cfg.StaticLongitude,
		}}
	case "client":
		hub := s.deps.Hub
		return NewClientLocationSource(func(_ context.Context) error {
			if hub == nil || hub.ClientCount(id) == 0 {
				return fmt.Errorf("%w: no client connected", ErrLocationUnavailable)
			}
			hub.SendToSession(id, websocket.Message{
				Type: websocket.TypeLocationRequest,
				Data: map[string]interface{}{"timeout_ms": cfg.LocationTimeout.Milliseconds()},
			})
			return nil
		})
	default:
		return UnavailableLocationSource{}
	}
}

func (s *sessionService) publisher(id string) PublishFunc {
	hub := s.deps.Hub
	return func(msgType string, data map[string]interface{}) {
		if hub == nil {
			return
		}
		hub.SendToSession(id, websocket.Message{Type: msgType, Data: data})
	}
}

func (s *sessionService) evicted(id string, v interface{}) {
	session, ok := v.(*Session)
	if !ok {
		return
	}
	session.close()
	s.deps.Metrics.SessionClosed()
	s.log.WithSessionID(id).Info("session closed")
}

func dataString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

// coordinateFromData requires latitude and longitude to be present and numeric.
func coordinateFromData(data map[string]interface{}) (models.Coordinate, error) {
	fields := map[string]string{}
	lat, ok := dataNumber(data, "latitude")
	if !ok {
		fields["latitude"] = "latitude is required"
	}
	lng, ok := dataNumber(data, "longitude")
	if !ok {
		fields["longitude"] = "longitude is required"
	}
	if len(fields) > 0 {
		return models.Coordinate{}, &ValidationError{Fields: fields}
	}
	return models.Coordinate{
		Latitude:  lat,
		Longitude: lng,
		Accuracy:  dataFloat(data, "accuracy"),
	}, nil
}

func dataNumber(data map[string]interface{}, key string) (float64, bool) {
	switch v := data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func dataFloat(data map[string]interface{}, key string) float64 {
	v, _ := dataNumber(data, key)
	return v
}

func dataInt(data map[string]interface{}, key string) int {
	return int(dataFloat(data, key))
}

func dataBool(data map[string]interface{}, key string) bool {
	v, _ := data[key].(bool)
	return v
}
