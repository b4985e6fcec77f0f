package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/voicecoach/domain"
	"github.com/satriahrh/voicecoach/domain/entities"
	"github.com/satriahrh/voicecoach/domain/repositories"
	"github.com/satriahrh/voicecoach/internal/audio"
)

// PersonaCatalog resolves persona ids
type PersonaCatalog interface {
	Get(id string) (entities.Persona, error)
	Default() entities.Persona
}

// SessionController owns the lifecycle of one coaching session at a time:
// credential, microphone, speaker and agent socket are acquired in order by
// Connect and released together by Disconnect or by any failure.
type SessionController struct {
	issuer   repositories.CredentialIssuer
	mic      repositories.Microphone
	speaker  repositories.Speaker
	dialer   repositories.AgentDialer
	personas PersonaCatalog
	cfg      AgentConfig
	logger   *zap.Logger

	mu      sync.Mutex
	session *entities.Session
	persona entities.Persona
	active  *liveSession

	// listenerMu is always taken before mu
	listenerMu sync.Mutex
	listener   func(entities.Session)

	teardown sync.WaitGroup
}

// NewSessionController creates a disconnected controller using the catalog's default persona
func NewSessionController(
	issuer repositories.CredentialIssuer,
	mic repositories.Microphone,
	speaker repositories.Speaker,
	dialer repositories.AgentDialer,
	personas PersonaCatalog,
	cfg AgentConfig,
	logger *zap.Logger,
) *SessionController {
	persona := personas.Default()
	return &SessionController{
		issuer:   issuer,
		mic:      mic,
		speaker:  speaker,
		dialer:   dialer,
		personas: personas,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		session:  entities.NewSession(persona.ID),
		persona:  persona,
	}
}

// OnChange registers fn to receive a snapshot after every state change.
// fn runs synchronously and must not call back into the controller.
func (c *SessionController) OnChange(fn func(entities.Session)) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.listener = fn
}

// Snapshot returns a copy of the current session state
func (c *SessionController) Snapshot() entities.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// Persona returns the persona the next session will use
func (c *SessionController) Persona() entities.Persona {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persona
}

// SelectPersona changes the persona. It is refused while a session is live.
func (c *SessionController) SelectPersona(id string) error {
	p, err := c.personas.Get(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if !c.session.CanConnect() {
		status := c.session.Status
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot change persona while %s", domain.ErrInvalidTransition, status)
	}
	c.persona = p
	c.session.PersonaID = p.ID
	c.mu.Unlock()

	c.logger.Info("Persona selected", zap.String("persona", p.ID))
	c.notify()
	return nil
}

// liveSession holds the resources of one connect attempt. Resources are
// handed over with hold; once released, late arrivals are closed at once.
type liveSession struct {
	id        string
	queue     *audio.PlaybackQueue
	renderer  *audio.Renderer
	processor *audio.CaptureProcessor

	mu       sync.Mutex
	released bool
	capture  repositories.CaptureStream
	playback repositories.PlaybackSink
	conn     repositories.AgentConn
}

func (ls *liveSession) hold(set func()) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.released {
		return false
	}
	set()
	return true
}

// start runs fn under the session lock unless the session was already
// released, so a release never interleaves with a device start.
func (ls *liveSession) start(fn func() error) (bool, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.released {
		return false, nil
	}
	return true, fn()
}

// Connect opens a session: credential, microphone, speaker, socket, then
// Settings, and only after that starts streaming microphone audio.
func (c *SessionController) Connect(ctx context.Context) error {
	c.mu.Lock()
	if err := c.session.BeginConnect(); err != nil {
		status := c.session.Status
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot connect while %s", err, status)
	}
	persona := c.persona
	ls := &liveSession{
		id:        c.session.ID,
		queue:     audio.NewPlaybackQueue(c.cfg.PlaybackBufferSamples),
		renderer:  audio.NewRenderer(),
		processor: audio.NewCaptureProcessor(c.cfg.FrameSamples, c.logger),
	}
	c.active = ls
	c.mu.Unlock()
	c.notify()

	logger := c.logger.With(zap.String("session_id", ls.id), zap.String("persona", persona.ID))
	logger.Info("Connecting session")

	cred, err := c.issuer.Issue(ctx)
	if err != nil {
		return c.fail(ls, domain.KindCredentialFetchFailed, err)
	}

	stream, err := c.mic.Open(ctx, c.cfg.InputSampleRate)
	if err != nil {
		return c.fail(ls, microphoneKind(err), err)
	}
	if !ls.hold(func() { ls.capture = stream }) {
		c.releaseAsync(ls.id, "microphone", stream.Stop)
		return domain.ErrSessionCancelled
	}
	if rate := stream.SampleRate(); rate != c.cfg.InputSampleRate {
		return c.fail(ls, domain.KindMicrophoneOther,
			fmt.Errorf("capture rate %d does not match declared input rate %d", rate, c.cfg.InputSampleRate))
	}

	sink, err := c.speaker.Open(ctx, c.cfg.OutputSampleRate)
	if err != nil {
		return c.fail(ls, domain.KindAudioOutputFailed, err)
	}
	if !ls.hold(func() { ls.playback = sink }) {
		c.releaseAsync(ls.id, "speaker", sink.Close)
		return domain.ErrSessionCancelled
	}
	if rate := sink.SampleRate(); rate != c.cfg.OutputSampleRate {
		return c.fail(ls, domain.KindAudioOutputFailed,
			fmt.Errorf("playback rate %d does not match declared output rate %d", rate, c.cfg.OutputSampleRate))
	}
	live, err := ls.start(func() error {
		ls.renderer.Attach(ls.queue)
		return sink.Start(ls.renderer.Render)
	})
	if !live {
		return domain.ErrSessionCancelled
	}
	if err != nil {
		return c.fail(ls, domain.KindAudioOutputFailed, err)
	}

	conn, err := c.dialer.Dial(ctx, cred.Token)
	if err != nil {
		return c.fail(ls, domain.KindSocketError, err)
	}
	if !ls.hold(func() { ls.conn = conn }) {
		c.releaseAsync(ls.id, "agent socket", conn.Close)
		return domain.ErrSessionCancelled
	}
	go c.pump(ls, conn)

	if err := conn.SendSettings(BuildSettings(c.cfg, persona)); err != nil {
		return c.fail(ls, domain.KindSocketError, err)
	}
	logger.Debug("Settings sent")

	live, err = ls.start(func() error {
		ls.processor.Attach(conn)
		return stream.Start(ls.processor.Process)
	})
	if !live {
		return domain.ErrSessionCancelled
	}
	if err != nil {
		return c.fail(ls, domain.KindMicrophoneOther, err)
	}

	c.mu.Lock()
	if c.active != ls {
		c.mu.Unlock()
		return domain.ErrSessionCancelled
	}
	err = c.session.MarkConnected()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	logger.Info("Session connected")
	c.notify()
	return nil
}

// Disconnect ends the current session, if any. It is safe to call from any
// state and any number of times. Resource release runs in the background;
// WaitTeardown blocks until it has finished.
func (c *SessionController) Disconnect() {
	c.mu.Lock()
	ls := c.active
	c.active = nil
	wasLive := ls != nil || c.session.Status != entities.StatusDisconnected
	c.session.MarkDisconnected()
	c.mu.Unlock()

	if ls != nil {
		c.logger.Info("Disconnecting session", zap.String("session_id", ls.id))
		c.release(ls)
	}
	if wasLive {
		c.notify()
	}
}

// WaitTeardown blocks until every background release has returned
func (c *SessionController) WaitTeardown() {
	c.teardown.Wait()
}

func (c *SessionController) fail(ls *liveSession, kind domain.ErrorKind, err error) error {
	c.mu.Lock()
	if c.active != ls {
		c.mu.Unlock()
		c.release(ls)
		return domain.ErrSessionCancelled
	}
	c.active = nil
	sessionErr := domain.NewSessionError(kind, err)
	c.session.Fail(sessionErr)
	c.mu.Unlock()

	c.logger.Error("Session failed",
		zap.String("session_id", ls.id),
		zap.String("kind", string(kind)),
		zap.Error(err))
	c.release(ls)
	c.notify()
	return sessionErr
}

// release stops the audio paths synchronously, then closes each resource in
// its own goroutine so one failing close never blocks the others.
func (c *SessionController) release(ls *liveSession) {
	ls.mu.Lock()
	if ls.released {
		ls.mu.Unlock()
		return
	}
	ls.released = true
	capture, playback, conn := ls.capture, ls.playback, ls.conn
	ls.capture, ls.playback, ls.conn = nil, nil, nil
	ls.mu.Unlock()

	ls.processor.Detach()
	ls.renderer.Detach()

	if capture != nil {
		c.releaseAsync(ls.id, "microphone", capture.Stop)
	}
	if conn != nil {
		c.releaseAsync(ls.id, "agent socket", conn.Close)
	}
	if playback != nil {
		c.releaseAsync(ls.id, "speaker", playback.Close)
	}

	c.logger.Info("Session released",
		zap.String("session_id", ls.id),
		zap.Uint64("frames_sent", ls.processor.FramesSent()),
		zap.Uint64("samples_dropped", ls.processor.SamplesDropped()),
		zap.Uint64("playback_dropped", ls.queue.Dropped()),
		zap.Uint64("underruns", ls.renderer.Underruns()))
}

func (c *SessionController) releaseAsync(sessionID, resource string, closeFn func() error) {
	c.teardown.Add(1)
	go func() {
		defer c.teardown.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Panic releasing resource",
					zap.String("session_id", sessionID),
					zap.String("resource", resource),
					zap.Any("panic", r))
			}
		}()

		if err := closeFn(); err != nil {
			c.logger.Warn("Failed to release resource",
				zap.String("session_id", sessionID),
				zap.String("resource", resource),
				zap.Error(err))
		}
	}()
}

// pump is the only producer for the session's playback queue
func (c *SessionController) pump(ls *liveSession, conn repositories.AgentConn) {
	for event := range conn.Events() {
		c.dispatch(ls, event)
	}
	c.handleSocketEnd(ls, conn.Err())
}

func (c *SessionController) dispatch(ls *liveSession, event domain.AgentEvent) {
	switch e := event.(type) {
	case domain.AudioEvent:
		if !c.isActive(ls) {
			return
		}
		ls.queue.EnqueuePCM16(e.Data)
		c.setMic(ls, entities.MicSpeaking)

	case domain.WelcomeEvent:
		c.logger.Info("Agent welcome", zap.String("session_id", ls.id), zap.String("request_id", e.RequestID))

	case domain.SettingsAppliedEvent:
		c.logger.Info("Agent settings applied", zap.String("session_id", ls.id))
		c.setMic(ls, entities.MicListening)

	case domain.UserStartedSpeakingEvent:
		c.setMic(ls, entities.MicListening)

	case domain.AgentThinkingEvent:
		c.setMic(ls, entities.MicProcessing)

	case domain.AgentStartedSpeakingEvent:
		c.setMic(ls, entities.MicSpeaking)

	case domain.AgentAudioDoneEvent:
		c.setMic(ls, entities.MicListening)

	case domain.ConversationTextEvent:
		role := entities.MessageRoleAssistant
		if e.Role == string(entities.MessageRoleUser) {
			role = entities.MessageRoleUser
		}
		c.update(ls, func(s *entities.Session) bool {
			s.AddTranscript(role, e.Content)
			return true
		})

	case domain.HistoryEvent:
		c.logger.Debug("Agent history", zap.String("session_id", ls.id), zap.String("role", e.Role))

	case domain.WarningEvent:
		c.logger.Warn("Agent warning",
			zap.String("session_id", ls.id),
			zap.String("code", e.Code),
			zap.String("description", e.Description))

	case domain.ErrorEvent:
		c.logger.Error("Agent reported error",
			zap.String("session_id", ls.id),
			zap.String("code", e.Code),
			zap.String("description", e.Text()))
		c.update(ls, func(s *entities.Session) bool {
			s.ReportError(&domain.SessionError{
				Kind:    domain.KindAgentReportedError,
				Message: e.Text(),
			})
			return true
		})

	case domain.UnknownEvent:
		c.logger.Debug("Ignoring unknown agent message", zap.String("session_id", ls.id), zap.String("type", e.Type))

	default:
		c.logger.Debug("Ignoring agent event", zap.String("session_id", ls.id), zap.String("type", event.EventType()))
	}
}

func (c *SessionController) handleSocketEnd(ls *liveSession, err error) {
	c.mu.Lock()
	if c.active != ls {
		c.mu.Unlock()
		return
	}
	c.active = nil

	if err == nil {
		c.session.MarkDisconnected()
	} else {
		kind := domain.KindSocketError
		if errors.Is(err, domain.ErrSocketClosedUnexpectedly) {
			kind = domain.KindSocketClosedUnexpectedly
		}
		c.session.Fail(domain.NewSessionError(kind, err))
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("Agent socket ended", zap.String("session_id", ls.id), zap.Error(err))
	} else {
		c.logger.Info("Agent socket closed", zap.String("session_id", ls.id))
	}
	c.release(ls)
	c.notify()
}

func (c *SessionController) isActive(ls *liveSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active == ls
}

func (c *SessionController) setMic(ls *liveSession, m entities.MicStatus) {
	c.update(ls, func(s *entities.Session) bool {
		return s.SetMic(m)
	})
}

// update applies fn if ls is still the active session and notifies on change
func (c *SessionController) update(ls *liveSession, fn func(s *entities.Session) bool) {
	c.mu.Lock()
	if c.active != ls {
		c.mu.Unlock()
		return
	}
	changed := fn(c.session)
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

func (c *SessionController) notify() {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	if c.listener == nil {
		return
	}
	c.listener(c.Snapshot())
}

func microphoneKind(err error) domain.ErrorKind {
	switch {
	case errors.Is(err, domain.ErrMicrophonePermissionDenied):
		return domain.KindMicrophonePermission
	case errors.Is(err, domain.ErrMicrophoneNotFound):
		return domain.KindMicrophoneNotFound
	default:
		return domain.KindMicrophoneOther
	}
}
