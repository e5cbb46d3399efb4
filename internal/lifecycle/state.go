package lifecycle

import "github.com/raleighpd/scenelog/pkg/domain"

// State is the machine's single active state. The concrete types are
// Unauthenticated, Authenticating, Authenticated, CreatingScene, SceneReady
// and Failed; switch on them with a type switch.
type State interface {
	Name() string
	sealed()
}

// Unauthenticated is the initial state. No session, no scene.
type Unauthenticated struct{}

// Authenticating is held while a sign-in request is in flight.
type Authenticating struct{}

// Authenticated holds a session and no scene.
type Authenticated struct {
	Session domain.Session
}

// CreatingScene is held while a scene insert is in flight.
type CreatingScene struct {
	Session domain.Session
}

// SceneReady holds the session and the most recently created scene.
type SceneReady struct {
	Session domain.Session
	Scene   domain.Scene
}

// Failed records the last failed action. Resume is the state the machine
// effectively returned to; actions valid there are valid here.
type Failed struct {
	Op     string
	Err    error
	Resume State
}

func (Unauthenticated) Name() string { return "unauthenticated" }
func (Authenticating) Name() string  { return "authenticating" }
func (Authenticated) Name() string   { return "authenticated" }
func (CreatingScene) Name() string   { return "creating_scene" }
func (SceneReady) Name() string      { return "scene_ready" }
func (Failed) Name() string          { return "error" }

func (Unauthenticated) sealed() {}
func (Authenticating) sealed()  {}
func (Authenticated) sealed()   {}
func (CreatingScene) sealed()   {}
func (SceneReady) sealed()      {}
func (Failed) sealed()          {}

// Effective unwraps a Failed state to the state it resumes.
func Effective(s State) State {
	if f, ok := s.(Failed); ok {
		return f.Resume
	}
	return s
}

// Busy reports whether s is a transient state with a request in flight.
func Busy(s State) bool {
	switch s.(type) {
	case Authenticating, CreatingScene:
		return true
	}
	return false
}

// sessionOf returns the session carried by s, if any.
func sessionOf(s State) (domain.Session, bool) {
	switch st := Effective(s).(type) {
	case Authenticated:
		return st.Session, true
	case CreatingScene:
		return st.Session, true
	case SceneReady:
		return st.Session, true
	}
	return domain.Session{}, false
}

// snapshot deep-copies s so callers cannot reach the machine's perimeter slice.
func snapshot(s State) State {
	switch st := s.(type) {
	case SceneReady:
		st.Scene.Perimeter = st.Scene.Perimeter.Clone()
		return st
	case Failed:
		st.Resume = snapshot(st.Resume)
		return st
	}
	return s
}
