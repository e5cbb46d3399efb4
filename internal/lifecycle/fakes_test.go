package lifecycle

import (
	"context"
	"sync"

	"github.com/raleighpd/scenelog/pkg/client"
	"github.com/raleighpd/scenelog/pkg/domain"
)

const testBaseURL = "https://proj.supabase.co"

// fakeAuth is an in-memory auth gateway. current, when set, decides what
// CurrentSession hands back; otherwise the passed session is returned as-is.
// When gate is non-nil, SignIn reports on entered and blocks until gate
// yields.
type fakeAuth struct {
	mu           sync.Mutex
	users        map[string]domain.Session // keyed by email+"\x00"+password
	current      func(domain.Session) (*domain.Session, error)
	gate         chan struct{}
	entered      chan struct{}
	signInCalls  int
	currentCalls int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: map[string]domain.Session{
		"reviewer@raleighnc.gov\x00DemoPass123!": {UserID: "u1", AccessToken: "tok1"},
	}}
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) (domain.Session, error) {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.signInCalls++
	s, ok := f.users[email+"\x00"+password]
	if !ok {
		return domain.Session{}, &client.AuthError{StatusCode: 400, Message: "Invalid login credentials"}
	}
	return s, nil
}

func (f *fakeAuth) CurrentSession(_ context.Context, current domain.Session) (*domain.Session, error) {
	f.mu.Lock()
	f.currentCalls++
	fn := f.current
	f.mu.Unlock()
	if fn != nil {
		return fn(current)
	}
	return &current, nil
}

func (f *fakeAuth) setCurrent(fn func(domain.Session) (*domain.Session, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = fn
}

func (f *fakeAuth) calls() (signIn, current int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signInCalls, f.currentCalls
}

type createCall struct {
	scene domain.NewScene
	token string
}

// fakeRepo records inserts. When gate is non-nil each call blocks until a
// value arrives on it.
type fakeRepo struct {
	mu      sync.Mutex
	ids     []string
	err     error
	gate    chan struct{}
	entered chan struct{}
	created []createCall
}

func (f *fakeRepo) CreateScene(ctx context.Context, scene domain.NewScene, token string) (string, error) {
	f.mu.Lock()
	f.created = append(f.created, createCall{scene: scene, token: token})
	n := len(f.created)
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if n <= len(f.ids) {
		return f.ids[n-1], nil
	}
	return "s1", nil
}

func (f *fakeRepo) calls() []createCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]createCall(nil), f.created...)
}

func newTestMachine() (*Machine, *fakeAuth, *fakeRepo) {
	auth := newFakeAuth()
	repo := &fakeRepo{}
	return New(auth, repo, client.NewExportLinks(testBaseURL)), auth, repo
}
