// Package lifecycle owns the session and scene of one field user and moves
// them through login, scene creation and export.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/raleighpd/scenelog/pkg/client"
	"github.com/raleighpd/scenelog/pkg/domain"
)

// AuthGateway signs users in and re-validates their sessions.
type AuthGateway interface {
	SignIn(ctx context.Context, email, password string) (domain.Session, error)
	// CurrentSession returns a usable version of current (possibly refreshed),
	// or nil when none is left.
	CurrentSession(ctx context.Context, current domain.Session) (*domain.Session, error)
}

// SceneRepository inserts scenes on behalf of the bearer of authToken.
type SceneRepository interface {
	CreateScene(ctx context.Context, scene domain.NewScene, authToken string) (string, error)
}

// LinkBuilder formats export URLs without I/O.
type LinkBuilder interface {
	BuildExportURL(sceneID string, kind domain.ExportKind, token string) string
}

// Machine is the session/scene state machine. It is the only owner of the
// session; collaborators receive copies per call.
//
// Login, create and export are serialized: while one is in flight the others
// fail fast with ErrBusy. Logout is always accepted and makes any in-flight
// response stale.
type Machine struct {
	auth   AuthGateway
	scenes SceneRepository
	links  LinkBuilder
	log    zerolog.Logger

	sem *semaphore.Weighted

	mu    sync.Mutex
	state State
	epoch uint64
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the transition logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// New creates a machine in the Unauthenticated state.
func New(auth AuthGateway, scenes SceneRepository, links LinkBuilder, opts ...Option) *Machine {
	m := &Machine{
		auth:   auth,
		scenes: scenes,
		links:  links,
		log:    zerolog.Nop(),
		sem:    semaphore.NewWeighted(1),
		state:  Unauthenticated{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot(m.state)
}

// Session returns a copy of the active session, if any.
func (m *Machine) Session() (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sessionOf(m.state)
}

// Scene returns a copy of the tracked scene, if any.
func (m *Machine) Scene() (domain.Scene, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := Effective(m.state).(SceneReady); ok {
		sc := st.Scene
		sc.Perimeter = sc.Perimeter.Clone()
		return sc, true
	}
	return domain.Scene{}, false
}

// SubmitLogin signs in. Valid from Unauthenticated and from any Failed state;
// a new session replaces the old one and drops the tracked scene. On failure
// no session is kept.
func (m *Machine) SubmitLogin(ctx context.Context, email, password string) error {
	if !m.sem.TryAcquire(1) {
		return &OpError{Op: OpLogin, Err: ErrBusy}
	}
	defer m.sem.Release(1)

	m.mu.Lock()
	cur := m.state
	if _, failed := cur.(Failed); !failed {
		if _, ok := cur.(Unauthenticated); !ok {
			err := m.failLocked(OpLogin, ErrAlreadyAuthenticated, Effective(cur))
			m.mu.Unlock()
			return err
		}
	}
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		err := m.failLocked(OpLogin, &ValidationError{Reason: ReasonMissingCredentials, Detail: "email and password are required"}, Effective(cur))
		m.mu.Unlock()
		return err
	}
	m.setLocked(Authenticating{})
	epoch := m.epoch
	m.mu.Unlock()

	s, err := m.auth.SignIn(ctx, email, password)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		m.log.Debug().Str("op", OpLogin).Msg("dropping response after logout")
		return &OpError{Op: OpLogin, Err: ErrSuperseded}
	}
	if err == nil && !s.Valid() {
		err = &client.AuthError{Message: "auth gateway returned an incomplete session"}
	}
	if err != nil {
		return m.failLocked(OpLogin, err, Unauthenticated{})
	}
	m.setLocked(Authenticated{Session: s})
	return nil
}

// SubmitCreateScene records a scene for the signed-in user. Valid from
// Authenticated and SceneReady; a new scene replaces the tracked one.
// Title and perimeter are checked locally before any request is made, and
// CreatedBy is always the session's user.
func (m *Machine) SubmitCreateScene(ctx context.Context, title, caseNumber string, perimeter domain.Perimeter) (domain.Scene, error) {
	if !m.sem.TryAcquire(1) {
		return domain.Scene{}, &OpError{Op: OpCreateScene, Err: ErrBusy}
	}
	defer m.sem.Release(1)

	m.mu.Lock()
	eff := Effective(m.state)
	var s domain.Session
	switch st := eff.(type) {
	case Authenticated:
		s = st.Session
	case SceneReady:
		s = st.Session
	default:
		err := m.failLocked(OpCreateScene, ErrNoSession, eff)
		m.mu.Unlock()
		return domain.Scene{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		err := m.failLocked(OpCreateScene, &ValidationError{Reason: ReasonInvalidTitle, Detail: "title is required"}, eff)
		m.mu.Unlock()
		return domain.Scene{}, err
	}
	if verr := perimeter.Validate(); verr != nil {
		err := m.failLocked(OpCreateScene, &ValidationError{Reason: ReasonInvalidPerimeter, Detail: perimeterDetail(verr)}, eff)
		m.mu.Unlock()
		return domain.Scene{}, err
	}
	payload := domain.NewScene{
		Title:      title,
		CaseNumber: caseNumber,
		Perimeter:  perimeter.Clone(),
		CreatedBy:  s.UserID,
	}
	m.setLocked(CreatingScene{Session: s})
	epoch := m.epoch
	m.mu.Unlock()

	id, err := m.scenes.CreateScene(ctx, payload, s.AccessToken)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		m.log.Debug().Str("op", OpCreateScene).Msg("dropping response after logout")
		return domain.Scene{}, &OpError{Op: OpCreateScene, Err: ErrSuperseded}
	}
	if err == nil && id == "" {
		err = &client.RepositoryError{Message: "insert returned no id"}
	}
	if err != nil {
		return domain.Scene{}, m.failLocked(OpCreateScene, err, Authenticated{Session: s})
	}
	scene := domain.Scene{
		ID:         id,
		Title:      payload.Title,
		CaseNumber: payload.CaseNumber,
		Perimeter:  payload.Perimeter.Clone(),
		CreatedBy:  payload.CreatedBy,
	}
	m.setLocked(SceneReady{Session: s, Scene: scene})
	scene.Perimeter = scene.Perimeter.Clone()
	return scene, nil
}

// RequestExport builds an export link for the tracked scene. Valid only from
// SceneReady. The session is re-validated through the auth gateway right
// before the link is built, so a refreshed token is always the one used.
func (m *Machine) RequestExport(ctx context.Context, kind domain.ExportKind) (domain.ExportLink, error) {
	if !m.sem.TryAcquire(1) {
		return domain.ExportLink{}, &OpError{Op: OpExport, Err: ErrBusy}
	}
	defer m.sem.Release(1)

	m.mu.Lock()
	eff := Effective(m.state)
	ready, ok := eff.(SceneReady)
	if !ok || ready.Scene.ID == "" {
		err := m.failLocked(OpExport, ErrNoScene, eff)
		m.mu.Unlock()
		return domain.ExportLink{}, err
	}
	if !kind.Valid() {
		err := m.failLocked(OpExport, &ValidationError{Reason: ReasonInvalidExportKind, Detail: string(kind)}, eff)
		m.mu.Unlock()
		return domain.ExportLink{}, err
	}
	epoch := m.epoch
	m.mu.Unlock()

	fresh, err := m.auth.CurrentSession(ctx, ready.Session)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		m.log.Debug().Str("op", OpExport).Msg("dropping response after logout")
		return domain.ExportLink{}, &OpError{Op: OpExport, Err: ErrSuperseded}
	}
	if err != nil {
		var authErr *client.AuthError
		if errors.As(err, &authErr) {
			return domain.ExportLink{}, m.failLocked(OpExport, err, Unauthenticated{})
		}
		return domain.ExportLink{}, m.failLocked(OpExport, err, ready)
	}
	if fresh == nil || !fresh.Valid() || fresh.UserID != ready.Session.UserID {
		return domain.ExportLink{}, m.failLocked(OpExport, ErrNoSession, Unauthenticated{})
	}

	ready.Session = *fresh
	m.setLocked(ready)
	link := domain.ExportLink{
		SceneID: ready.Scene.ID,
		Kind:    kind,
		URL:     m.links.BuildExportURL(ready.Scene.ID, kind, fresh.AccessToken),
	}
	m.log.Info().Str("scene_id", link.SceneID).Str("kind", string(kind)).Msg("export link built")
	return link, nil
}

// Logout clears the session and scene from any state. A request still in
// flight completes but its response is discarded.
func (m *Machine) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	m.setLocked(Unauthenticated{})
}

func (m *Machine) setLocked(next State) {
	m.log.Debug().Str("from", m.state.Name()).Str("to", next.Name()).Msg("transition")
	m.state = next
}

func (m *Machine) failLocked(op string, cause error, resume State) error {
	m.log.Warn().Str("op", op).Str("resume", resume.Name()).Err(cause).Msg("action failed")
	m.setLocked(Failed{Op: op, Err: cause, Resume: resume})
	return &OpError{Op: op, Err: cause}
}

// perimeterDetail strips the reason prefix domain errors carry.
func perimeterDetail(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, domain.ErrInvalidPerimeter.Error()+": "); ok {
		return rest
	}
	return msg
}
