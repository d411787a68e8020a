package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"safeher/internal/models"
	"safeher/internal/validators"
	"safeher/pkg/logger"
	"safeher/pkg/maps"
	"safeher/pkg/metrics"

	"golang.org/x/sync/singleflight"
)

const geocodeTimeout = 3 * time.Second

// LocationSource yields the device position. Implementations return
// ErrLocationUnavailable when there is no way to get one.
type LocationSource interface {
	CurrentPosition(ctx context.Context) (models.Coordinate, error)
}

// StaticLocationSource always reports the same coordinate.
type StaticLocationSource struct {
	Coordinate models.Coordinate
}

func (s StaticLocationSource) CurrentPosition(_ context.Context) (models.Coordinate, error) {
	c := s.Coordinate
	c.Timestamp = time.Now()
	return c, nil
}

type UnavailableLocationSource struct{}

func (UnavailableLocationSource) CurrentPosition(_ context.Context) (models.Coordinate, error) {
	return models.Coordinate{}, ErrLocationUnavailable
}

type positionReply struct {
	coordinate models.Coordinate
	err        error
}

// ClientLocationSource asks the connected client for its position and waits for the
// answer delivered through Deliver or Fail.
type ClientLocationSource struct {
	mu      sync.Mutex
	request func(ctx context.Context) error
	waiters []chan positionReply
}

// NewClientLocationSource takes the function that sends the position request.
func NewClientLocationSource(request func(ctx context.Context) error) *ClientLocationSource {
	return &ClientLocationSource{request: request}
}

func (s *ClientLocationSource) CurrentPosition(ctx context.Context) (models.Coordinate, error) {
	ch := make(chan positionReply, 1)

	s.mu.Lock()
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	if err := s.request(ctx); err != nil {
		s.drop(ch)
		return models.Coordinate{}, err
	}

	select {
	case reply := <-ch:
		return reply.coordinate, reply.err
	case <-ctx.Done():
		s.drop(ch)
		return models.Coordinate{}, ctx.Err()
	}
}

// Deliver resolves every outstanding request with c.
func (s *ClientLocationSource) Deliver(c models.Coordinate) {
	s.resolve(positionReply{coordinate: c})
}

// Fail resolves every outstanding request as unavailable.
func (s *ClientLocationSource) Fail(reason string) {
	s.resolve(positionReply{err: fmt.Errorf("%w: %s", ErrLocationUnavailable, reason)})
}

// Waiting reports how many requests are outstanding.
func (s *ClientLocationSource) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

func (s *ClientLocationSource) resolve(reply positionReply) {
	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, ch := range waiters {
		ch <- reply
	}
}

func (s *ClientLocationSource) drop(ch chan positionReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.waiters {
		if w == ch {
			s.waiters = append(s.waiters[:i:i], s.waiters[i+1:]...)
			return
		}
	}
}

// LocationProvider caches the last known coordinate of a session and makes bounded
// fresh attempts when there is none.
type LocationProvider struct {
	mu        sync.RWMutex
	sessionID string
	last      *models.Coordinate
	source    LocationSource
	timeout   time.Duration
	geocoder  maps.MapsProvider
	group     singleflight.Group
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// NewLocationProvider builds a provider. geocoder may be nil.
func NewLocationProvider(sessionID string, source LocationSource, timeout time.Duration, geocoder maps.MapsProvider, m *metrics.Metrics, log *logger.Logger) *LocationProvider {
	if source == nil {
		source = UnavailableLocationSource{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LocationProvider{
		sessionID: sessionID,
		source:    source,
		timeout:   timeout,
		geocoder:  geocoder,
		metrics:   m,
		log:       log.WithSessionID(sessionID).WithField("component", "location"),
	}
}

// Prewarm starts an acquisition in the background so the cache is filled before it is
// needed.
func (p *LocationProvider) Prewarm(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	go p.Acquire(ctx)
}

// Acquire returns the cached coordinate or the outcome of one fresh attempt. It never
// blocks longer than the configured timeout.
func (p *LocationProvider) Acquire(ctx context.Context) models.LocationResult {
	if c := p.Last(); c != nil {
		return models.LocationResult{Status: models.LocationStatusAvailable, Coordinate: c, Cached: true}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ch := p.group.DoChan("position", func() (interface{}, error) {
		return p.source.CurrentPosition(ctx)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res = singleflight.Result{Err: ctx.Err()}
	}

	if res.Err != nil {
		result := locationFailure(res.Err)
		p.metrics.RecordLocation(string(result.Status))
		p.log.WithField("reason", result.Reason).Warn("location not acquired")
		return result
	}

	c := res.Val.(models.Coordinate)
	stored := p.store(ctx, c)
	p.metrics.RecordLocation(string(models.LocationStatusAvailable))
	return models.LocationResult{Status: models.LocationStatusAvailable, Coordinate: stored}
}

// Report overwrites the cached coordinate with one pushed by the client and resolves
// any request waiting on it.
func (p *LocationProvider) Report(ctx context.Context, c models.Coordinate) (models.Coordinate, error) {
	if err := validateCoordinate(c); err != nil {
		return models.Coordinate{}, err
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}

	if d, ok := p.source.(interface{ Deliver(models.Coordinate) }); ok {
		d.Deliver(c)
	}

	stored := p.store(ctx, c)
	return *stored, nil
}

// ReportFailure resolves a pending client request as unavailable.
func (p *LocationProvider) ReportFailure(reason string) {
	if f, ok := p.source.(interface{ Fail(string) }); ok {
		f.Fail(reason)
	}
	p.log.WithField("reason", reason).Info("client reported location failure")
}

// Last returns a copy of the cached coordinate, or nil.
func (p *LocationProvider) Last() *models.Coordinate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return nil
	}
	c := *p.last
	return &c
}

func (p *LocationProvider) store(ctx context.Context, c models.Coordinate) *models.Coordinate {
	if c.Address == "" {
		c.Address = p.reverseGeocode(ctx, c)
	}

	p.mu.Lock()
	p.last = &c
	p.mu.Unlock()

	out := c
	return &out
}

func (p *LocationProvider) reverseGeocode(ctx context.Context, c models.Coordinate) string {
	if p.geocoder == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), geocodeTimeout)
	defer cancel()

	resp, err := p.geocoder.ReverseGeocode(ctx, c.Latitude, c.Longitude)
	if err != nil {
		p.log.WithError(err).Warn("reverse geocoding failed")
		return ""
	}
	return resp.FirstAddress()
}

func locationFailure(err error) models.LocationResult {
	switch {
	case errors.Is(err, ErrLocationUnavailable):
		return models.LocationResult{Status: models.LocationStatusUnavailable, Reason: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return models.LocationResult{Status: models.LocationStatusError, Reason: "timeout"}
	default:
		return models.LocationResult{Status: models.LocationStatusError, Reason: err.Error()}
	}
}

func validateCoordinate(c models.Coordinate) error {
	if errs := validators.ValidateCoordinate(c); errs != nil {
		return &ValidationError{Fields: errs.Fields()}
	}
	return nil
}
