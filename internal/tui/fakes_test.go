package tui

import (
	"context"
	"sync"

	"github.com/raleighpd/scenelog/internal/lifecycle"
	"github.com/raleighpd/scenelog/pkg/client"
	"github.com/raleighpd/scenelog/pkg/domain"
)

const (
	testEmail    = "reviewer@raleighnc.gov"
	testPassword = "DemoPass123!"
)

// fakeAuth signs in the test user. When gate is set, SignIn reports on
// entered and then blocks until gate is closed.
type fakeAuth struct {
	mu      sync.Mutex
	current func(domain.Session) (*domain.Session, error)
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) (domain.Session, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if email != testEmail || password != testPassword {
		return domain.Session{}, &client.AuthError{StatusCode: 400, Message: "Invalid login credentials"}
	}
	return domain.Session{UserID: "u1", Email: email, AccessToken: "tok1"}, nil
}

func (f *fakeAuth) CurrentSession(_ context.Context, current domain.Session) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != nil {
		return f.current(current)
	}
	return &current, nil
}

type fakeRepo struct {
	mu      sync.Mutex
	created []domain.NewScene
}

func (f *fakeRepo) CreateScene(_ context.Context, scene domain.NewScene, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, scene)
	return "s1", nil
}

func (f *fakeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type testEnv struct {
	app    App
	auth   *fakeAuth
	repo   *fakeRepo
	copied []string
}

func newTestEnv() *testEnv {
	env := &testEnv{auth: &fakeAuth{}, repo: &fakeRepo{}}
	m := lifecycle.New(env.auth, env.repo, client.NewExportLinks("https://proj.supabase.co"))
	a := NewApp(context.Background(), m)
	a.width = 100
	a.height = 40
	a.copyText = func(s string) error {
		env.copied = append(env.copied, s)
		return nil
	}
	a.openURL = func(string) error { return nil }
	env.app = a
	return env
}
