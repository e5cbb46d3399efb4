package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/raleighpd/scenelog/pkg/client"
	"github.com/raleighpd/scenelog/pkg/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testPerimeter = domain.Perimeter{
	{Lon: -78.64, Lat: 35.78},
	{Lon: -78.64, Lat: 35.79},
	{Lon: -78.63, Lat: 35.79},
	{Lon: -78.64, Lat: 35.78},
}

func login(t *testing.T, m *Machine) {
	t.Helper()
	require.NoError(t, m.SubmitLogin(context.Background(), "reviewer@raleighnc.gov", "DemoPass123!"))
}

func createScene(t *testing.T, m *Machine) domain.Scene {
	t.Helper()
	sc, err := m.SubmitCreateScene(context.Background(), "Test Scene", "24-TEST-001", testPerimeter)
	require.NoError(t, err)
	return sc
}

func requireReason(t *testing.T, err error, op, reason string) {
	t.Helper()
	require.Error(t, err)
	var opErr *OpError
	require.True(t, errors.As(err, &opErr), "error %v is not an *OpError", err)
	require.Equal(t, op, opErr.Op)
	require.Equal(t, reason, Reason(err))
}

func TestInitialState(t *testing.T) {
	m, _, _ := newTestMachine()
	require.IsType(t, Unauthenticated{}, m.State())
	_, ok := m.Session()
	require.False(t, ok)
	_, ok = m.Scene()
	require.False(t, ok)
}

func TestReviewerScenario(t *testing.T) {
	m, _, repo := newTestMachine()
	ctx := context.Background()

	require.NoError(t, m.SubmitLogin(ctx, "reviewer@raleighnc.gov", "DemoPass123!"))
	st, ok := m.State().(Authenticated)
	require.True(t, ok, "state = %T", m.State())
	require.Equal(t, "u1", st.Session.UserID)
	require.Equal(t, "tok1", st.Session.AccessToken)

	sc, err := m.SubmitCreateScene(ctx, "Test Scene", "24-TEST-001", domain.Perimeter{
		{Lon: -78.64, Lat: 35.78}, {Lon: -78.64, Lat: 35.79}, {Lon: -78.63, Lat: 35.79}, {Lon: -78.64, Lat: 35.78},
	})
	require.NoError(t, err)
	require.Equal(t, "s1", sc.ID)
	require.Equal(t, "u1", sc.CreatedBy)
	require.IsType(t, SceneReady{}, m.State())

	calls := repo.calls()
	require.Len(t, calls, 1)
	require.Equal(t, "tok1", calls[0].token)
	require.Equal(t, "24-TEST-001", calls[0].scene.CaseNumber)

	link, err := m.RequestExport(ctx, domain.ExportCSV)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(link.URL, "sceneId=s1&token=tok1"), "url = %s", link.URL)
	require.Equal(t, testBaseURL+"/functions/v1/export-scene-csv?sceneId=s1&token=tok1", link.URL)
	require.Equal(t, "s1", link.SceneID)
	require.Equal(t, domain.ExportCSV, link.Kind)
}

func TestCreateSceneClosedPolygonsIssueOneCall(t *testing.T) {
	polygons := []domain.Perimeter{
		testPerimeter,
		{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 0}, {Lon: 1, Lat: 1}, {Lon: 0, Lat: 1}, {Lon: 0, Lat: 0}},
		{{Lon: 179.9, Lat: -89}, {Lon: -179.9, Lat: -89}, {Lon: 0, Lat: 89}, {Lon: 179.9, Lat: -89}},
	}
	for i, p := range polygons {
		t.Run(fmt.Sprintf("polygon_%d", i), func(t *testing.T) {
			m, _, repo := newTestMachine()
			login(t, m)
			_, err := m.SubmitCreateScene(context.Background(), "Scene", "C-1", p)
			require.NoError(t, err)
			calls := repo.calls()
			require.Len(t, calls, 1)
			require.Equal(t, "u1", calls[0].scene.CreatedBy)
			require.Equal(t, p, calls[0].scene.Perimeter)
		})
	}
}

func TestCreateSceneInvalidPerimeterNoNetwork(t *testing.T) {
	tests := []struct {
		name string
		p    domain.Perimeter
	}{
		{"open ring", domain.Perimeter{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 0}, {Lon: 1, Lat: 1}, {Lon: 0, Lat: 1}}},
		{"too few points", domain.Perimeter{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 0}, {Lon: 0, Lat: 0}}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, repo := newTestMachine()
			login(t, m)
			_, err := m.SubmitCreateScene(context.Background(), "Scene", "C-1", tt.p)
			requireReason(t, err, OpCreateScene, ReasonInvalidPerimeter)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			require.Empty(t, repo.calls())

			f, ok := m.State().(Failed)
			require.True(t, ok)
			require.Equal(t, OpCreateScene, f.Op)
			require.IsType(t, Authenticated{}, f.Resume)
		})
	}
}

func TestCreateSceneEmptyTitle(t *testing.T) {
	m, _, repo := newTestMachine()
	login(t, m)
	_, err := m.SubmitCreateScene(context.Background(), "   ", "C-1", testPerimeter)
	requireReason(t, err, OpCreateScene, ReasonInvalidTitle)
	require.Empty(t, repo.calls())
}

func TestCreateSceneWithoutSession(t *testing.T) {
	m, _, repo := newTestMachine()
	_, err := m.SubmitCreateScene(context.Background(), "Scene", "C-1", testPerimeter)
	requireReason(t, err, OpCreateScene, ReasonNoSession)
	require.ErrorIs(t, err, ErrNoSession)
	require.Empty(t, repo.calls())

	f, ok := m.State().(Failed)
	require.True(t, ok)
	require.IsType(t, Unauthenticated{}, f.Resume)
}

func TestCreateSceneRemoteFailureKeepsSession(t *testing.T) {
	m, _, repo := newTestMachine()
	login(t, m)
	createScene(t, m)

	repo.mu.Lock()
	repo.err = &client.RepositoryError{StatusCode: 409, Code: "23505", Message: "duplicate key value"}
	repo.mu.Unlock()

	_, err := m.SubmitCreateScene(context.Background(), "Second", "C-2", testPerimeter)
	require.Error(t, err)
	var repoErr *client.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	require.Equal(t, "duplicate key value", repoErr.Message)
	require.Contains(t, err.Error(), "create_scene")

	_, ok := m.Scene()
	require.False(t, ok, "scene must be unset after a failed create")
	s, ok := m.Session()
	require.True(t, ok, "session must survive a repository failure")
	require.Equal(t, "u1", s.UserID)

	_, err = m.RequestExport(context.Background(), domain.ExportCSV)
	requireReason(t, err, OpExport, ReasonNoScene)
}

func TestRecreateSceneReplacesTrackedScene(t *testing.T) {
	m, _, repo := newTestMachine()
	repo.ids = []string{"s1", "s2"}
	login(t, m)
	createScene(t, m)

	sc, err := m.SubmitCreateScene(context.Background(), "Another", "C-9", testPerimeter)
	require.NoError(t, err)
	require.Equal(t, "s2", sc.ID)

	got, ok := m.Scene()
	require.True(t, ok)
	require.Equal(t, "s2", got.ID)
	require.Len(t, repo.calls(), 2)
}

func TestDuplicateSubmissionsAreNotDeduplicated(t *testing.T) {
	m, _, repo := newTestMachine()
	login(t, m)
	createScene(t, m)
	createScene(t, m)
	require.Len(t, repo.calls(), 2)
}

func TestExportWithoutScene(t *testing.T) {
	m, auth, _ := newTestMachine()

	_, err := m.RequestExport(context.Background(), domain.ExportCSV)
	requireReason(t, err, OpExport, ReasonNoScene)

	login(t, m)
	_, err = m.RequestExport(context.Background(), domain.ExportPDF)
	requireReason(t, err, OpExport, ReasonNoScene)

	_, current := auth.calls()
	require.Zero(t, current, "no session lookup before a scene exists")
}

func TestExportInvalidKind(t *testing.T) {
	m, _, _ := newTestMachine()
	login(t, m)
	createScene(t, m)
	_, err := m.RequestExport(context.Background(), domain.ExportKind("xlsx"))
	requireReason(t, err, OpExport, ReasonInvalidExportKind)

	// The scene is still there to retry with a valid kind.
	_, err = m.RequestExport(context.Background(), domain.ExportPDF)
	require.NoError(t, err)
}

func TestExportKindsDeterministic(t *testing.T) {
	m, _, _ := newTestMachine()
	login(t, m)
	createScene(t, m)
	ctx := context.Background()

	csv1, err := m.RequestExport(ctx, domain.ExportCSV)
	require.NoError(t, err)
	pdf1, err := m.RequestExport(ctx, domain.ExportPDF)
	require.NoError(t, err)
	csv2, err := m.RequestExport(ctx, domain.ExportCSV)
	require.NoError(t, err)

	require.NotEqual(t, csv1.URL, pdf1.URL)
	require.Equal(t, csv1.URL, csv2.URL)
	require.Equal(t, pdf1.URL, strings.Replace(csv1.URL, "export-scene-csv", "export-scene-pdf", 1))
}

func TestLogoutForgetsScene(t *testing.T) {
	m, _, _ := newTestMachine()
	login(t, m)
	sc := createScene(t, m)
	require.Equal(t, "s1", sc.ID)

	m.Logout()
	require.IsType(t, Unauthenticated{}, m.State())
	_, ok := m.Session()
	require.False(t, ok)
	_, ok = m.Scene()
	require.False(t, ok)

	_, err := m.RequestExport(context.Background(), domain.ExportCSV)
	requireReason(t, err, OpExport, ReasonNoScene)
	require.NotErrorIs(t, err, ErrNoSession)
}

func TestLogoutFromAnyState(t *testing.T) {
	m, _, _ := newTestMachine()
	m.Logout()
	require.IsType(t, Unauthenticated{}, m.State())

	_, _ = m.SubmitCreateScene(context.Background(), "x", "y", nil)
	require.IsType(t, Failed{}, m.State())
	m.Logout()
	require.IsType(t, Unauthenticated{}, m.State())
}

func TestTokenRefreshUsedForExport(t *testing.T) {
	m, auth, _ := newTestMachine()
	login(t, m)
	createScene(t, m)

	auth.setCurrent(func(cur domain.Session) (*domain.Session, error) {
		cur.AccessToken = "tok2"
		return &cur, nil
	})

	link, err := m.RequestExport(context.Background(), domain.ExportPDF)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(link.URL, "sceneId=s1&token=tok2"), "url = %s", link.URL)
	require.NotContains(t, link.URL, "tok1")

	s, ok := m.Session()
	require.True(t, ok)
	require.Equal(t, "tok2", s.AccessToken, "refreshed session must replace the held one")

	signIn, _ := auth.calls()
	require.Equal(t, 1, signIn, "refresh must not require a new login")
}

func TestExportUnrecoverableSessionClearsEverything(t *testing.T) {
	m, auth, _ := newTestMachine()
	login(t, m)
	createScene(t, m)

	auth.setCurrent(func(domain.Session) (*domain.Session, error) {
		return nil, &client.AuthError{StatusCode: 400, Message: "Invalid Refresh Token"}
	})
	_, err := m.RequestExport(context.Background(), domain.ExportCSV)
	var authErr *client.AuthError
	require.ErrorAs(t, err, &authErr)

	f, ok := m.State().(Failed)
	require.True(t, ok)
	require.Equal(t, OpExport, f.Op)
	require.IsType(t, Unauthenticated{}, f.Resume)
	_, ok = m.Session()
	require.False(t, ok)

	_, err = m.RequestExport(context.Background(), domain.ExportCSV)
	requireReason(t, err, OpExport, ReasonNoScene)
}

func TestExportExpiredSessionWithoutRefresh(t *testing.T) {
	m, auth, _ := newTestMachine()
	login(t, m)
	createScene(t, m)

	auth.setCurrent(func(domain.Session) (*domain.Session, error) { return nil, nil })
	_, err := m.RequestExport(context.Background(), domain.ExportCSV)
	requireReason(t, err, OpExport, ReasonNoSession)
	_, ok := m.Session()
	require.False(t, ok)
}

func TestExportTransportFailureKeepsScene(t *testing.T) {
	m, auth, _ := newTestMachine()
	login(t, m)
	createScene(t, m)

	auth.setCurrent(func(domain.Session) (*domain.Session, error) {
		return nil, fmt.Errorf("client.CurrentSession: %w", errors.New("connection refused"))
	})
	_, err := m.RequestExport(context.Background(), domain.ExportCSV)
	require.Error(t, err)
	require.Empty(t, Reason(err))

	f, ok := m.State().(Failed)
	require.True(t, ok)
	require.IsType(t, SceneReady{}, f.Resume)

	auth.setCurrent(nil)
	_, err = m.RequestExport(context.Background(), domain.ExportCSV)
	require.NoError(t, err)
	require.IsType(t, SceneReady{}, m.State())
}

func TestLoginFailureThenRetry(t *testing.T) {
	m, _, _ := newTestMachine()
	err := m.SubmitLogin(context.Background(), "reviewer@raleighnc.gov", "wrong")
	var authErr *client.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, "Invalid login credentials", authErr.Message)

	f, ok := m.State().(Failed)
	require.True(t, ok)
	require.Equal(t, OpLogin, f.Op)
	require.IsType(t, Unauthenticated{}, f.Resume)
	_, ok = m.Session()
	require.False(t, ok)

	login(t, m)
	require.IsType(t, Authenticated{}, m.State())
}

func TestLoginMissingCredentialsNoNetwork(t *testing.T) {
	m, auth, _ := newTestMachine()
	err := m.SubmitLogin(context.Background(), "  ", "pw")
	requireReason(t, err, OpLogin, ReasonMissingCredentials)
	err = m.SubmitLogin(context.Background(), "a@b.c", "")
	requireReason(t, err, OpLogin, ReasonMissingCredentials)
	signIn, _ := auth.calls()
	require.Zero(t, signIn)
}

func TestLoginWhileAuthenticated(t *testing.T) {
	m, auth, _ := newTestMachine()
	login(t, m)
	createScene(t, m)

	err := m.SubmitLogin(context.Background(), "reviewer@raleighnc.gov", "DemoPass123!")
	requireReason(t, err, OpLogin, ReasonAlreadyAuthenticated)
	signIn, _ := auth.calls()
	require.Equal(t, 1, signIn)

	// The rejection resumes SceneReady, so the scene is still exportable.
	_, err = m.RequestExport(context.Background(), domain.ExportCSV)
	require.NoError(t, err)
}

func TestReloginFromFailedReplacesSession(t *testing.T) {
	m, auth, _ := newTestMachine()
	auth.users["other@raleighnc.gov\x00pw"] = domain.Session{UserID: "u2", AccessToken: "tokB"}
	login(t, m)
	createScene(t, m)

	_, _ = m.SubmitCreateScene(context.Background(), "", "x", testPerimeter) // now Failed
	require.NoError(t, m.SubmitLogin(context.Background(), "other@raleighnc.gov", "pw"))

	s, ok := m.Session()
	require.True(t, ok)
	require.Equal(t, "u2", s.UserID)
	_, ok = m.Scene()
	require.False(t, ok, "a new session starts without a scene")
}

func TestBusyRejectsConcurrentActions(t *testing.T) {
	m, _, repo := newTestMachine()
	login(t, m)
	repo.gate = make(chan struct{})
	repo.entered = make(chan struct{}, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	var createErr error
	go func() {
		defer wg.Done()
		_, createErr = m.SubmitCreateScene(context.Background(), "Scene", "C-1", testPerimeter)
	}()
	<-repo.entered

	require.IsType(t, CreatingScene{}, m.State())
	require.True(t, Busy(m.State()))

	_, err := m.SubmitCreateScene(context.Background(), "Scene", "C-1", testPerimeter)
	requireReason(t, err, OpCreateScene, ReasonBusy)
	_, err = m.RequestExport(context.Background(), domain.ExportCSV)
	requireReason(t, err, OpExport, ReasonBusy)
	err = m.SubmitLogin(context.Background(), "reviewer@raleighnc.gov", "DemoPass123!")
	requireReason(t, err, OpLogin, ReasonBusy)
	require.IsType(t, CreatingScene{}, m.State(), "busy rejection must not disturb the in-flight state")

	close(repo.gate)
	wg.Wait()
	require.NoError(t, createErr)
	require.IsType(t, SceneReady{}, m.State())
	require.Len(t, repo.calls(), 1)
}

func TestLogoutDuringCreateDropsLateResponse(t *testing.T) {
	m, _, repo := newTestMachine()
	login(t, m)
	repo.gate = make(chan struct{})
	repo.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := m.SubmitCreateScene(context.Background(), "Scene", "C-1", testPerimeter)
		done <- err
	}()
	<-repo.entered

	m.Logout()
	close(repo.gate)

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("create did not return")
	}
	require.IsType(t, Unauthenticated{}, m.State())
	_, ok := m.Scene()
	require.False(t, ok)
}

func TestLogoutDuringLoginDropsLateResponse(t *testing.T) {
	m, auth, _ := newTestMachine()
	auth.gate = make(chan struct{})
	auth.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		done <- m.SubmitLogin(context.Background(), "reviewer@raleighnc.gov", "DemoPass123!")
	}()
	<-auth.entered
	require.IsType(t, Authenticating{}, m.State())

	m.Logout()
	close(auth.gate)

	select {
	case err := <-done:
		requireReason(t, err, OpLogin, ReasonSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("login did not return")
	}
	require.IsType(t, Unauthenticated{}, m.State())
	_, ok := m.Session()
	require.False(t, ok, "late sign-in must not install a session")

	// The machine is usable again once the dropped login has released it.
	auth.mu.Lock()
	auth.gate, auth.entered = nil, nil
	auth.mu.Unlock()
	login(t, m)
}

func TestLogoutDuringExportDropsLateResponse(t *testing.T) {
	m, auth, _ := newTestMachine()
	login(t, m)
	createScene(t, m)

	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	auth.setCurrent(func(s domain.Session) (*domain.Session, error) {
		entered <- struct{}{}
		<-gate
		s.AccessToken = "tok2"
		return &s, nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := m.RequestExport(context.Background(), domain.ExportCSV)
		done <- err
	}()
	<-entered

	m.Logout()
	close(gate)

	select {
	case err := <-done:
		requireReason(t, err, OpExport, ReasonSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("export did not return")
	}
	require.IsType(t, Unauthenticated{}, m.State())
	_, ok := m.Session()
	require.False(t, ok, "refreshed session must not survive logout")
	_, ok = m.Scene()
	require.False(t, ok)
}

func TestCancelledCreateFails(t *testing.T) {
	m, _, repo := newTestMachine()
	login(t, m)
	repo.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.SubmitCreateScene(ctx, "Scene", "C-1", testPerimeter)
	require.ErrorIs(t, err, context.Canceled)

	f, ok := m.State().(Failed)
	require.True(t, ok)
	require.IsType(t, Authenticated{}, f.Resume)
}

func TestConcurrentExports(t *testing.T) {
	m, _, _ := newTestMachine()
	login(t, m)
	createScene(t, m)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := domain.ExportKinds[i%2]
			link, err := m.RequestExport(context.Background(), kind)
			if err != nil {
				if !errors.Is(err, ErrBusy) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !strings.Contains(link.URL, "export-scene-"+string(kind)) {
				t.Errorf("url %s does not match kind %s", link.URL, kind)
			}
		}(i)
	}
	wg.Wait()
}

func TestSnapshotsAreIsolated(t *testing.T) {
	m, _, _ := newTestMachine()
	login(t, m)
	createScene(t, m)

	sc, ok := m.Scene()
	require.True(t, ok)
	sc.Perimeter[0].Lon = 0

	ready := m.State().(SceneReady)
	ready.Scene.Perimeter[1].Lat = 0

	again, _ := m.Scene()
	require.Equal(t, testPerimeter, again.Perimeter)
}
