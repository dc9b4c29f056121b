package supervisor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockview-project/lockview/internal/audit"
	"github.com/lockview-project/lockview/internal/doctor"
	"github.com/lockview-project/lockview/internal/gitexec"
	"github.com/lockview-project/lockview/internal/resolver"
	"github.com/lockview-project/lockview/internal/secrets"
	"github.com/lockview-project/lockview/pkg/errclass"
	"github.com/lockview-project/lockview/pkg/model"
	"github.com/lockview-project/lockview/pkg/notify"
)

type fakePrereqs struct{ err error }

func (f fakePrereqs) RequirePrerequisites([]doctor.Tool, bool) error { return f.err }

type fakeProcess struct {
	code int
	err  error
}

func (p fakeProcess) Wait() (int, error) { return p.code, p.err }
func (p fakeProcess) Pid() int           { return 4242 }

type fakeLauncher struct {
	mu       sync.Mutex
	commands []Command
	proc     fakeProcess
	err      error
	// sawConfig records the config file contents at start time.
	sawConfig string
}

func (l *fakeLauncher) Start(ctx context.Context, cmd Command) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commands = append(l.commands, cmd)
	if len(cmd.Args) >= 3 {
		data, _ := os.ReadFile(cmd.Args[len(cmd.Args)-1])
		if cmd.Args[len(cmd.Args)-1] == "--plain" {
			data, _ = os.ReadFile(cmd.Args[len(cmd.Args)-2])
		}
		l.sawConfig = string(data)
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.proc, nil
}

type fakeNotifier struct {
	calls []string
	err   error
}

func (n *fakeNotifier) CreateIssue(ctx context.Context, ownerRepo, token string, issue notify.Issue) (*notify.Created, error) {
	n.calls = append(n.calls, ownerRepo+" "+token+" "+issue.Title)
	if n.err != nil {
		return nil, n.err
	}
	return &notify.Created{Number: 1}, nil
}

type fakeSecrets struct {
	doc   secrets.Document
	err   error
	calls int
}

func (f *fakeSecrets) Fetch(ctx context.Context, ownerRepo, path, ref, token string) (secrets.Document, error) {
	f.calls++
	return f.doc, f.err
}

type fixture struct {
	opts     Options
	deps     Deps
	launcher *fakeLauncher
	git      *gitexec.Fake
	goRunner *gitexec.Fake
	viewer   string
	progress *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dest := t.TempDir()
	viewer := filepath.Join(dest, "viewer")
	require.NoError(t, os.Mkdir(viewer, 0755))

	self := filepath.Join(t.TempDir(), "lockview")
	require.NoError(t, os.WriteFile(self, []byte("#!/bin/sh\n"), 0755))

	f := &fixture{
		launcher: &fakeLauncher{},
		git:      &gitexec.Fake{},
		goRunner: &gitexec.Fake{},
		viewer:   viewer,
		progress: &bytes.Buffer{},
	}
	f.opts = Options{
		Repo:         "https://github.com/acme/viewer",
		Dest:         dest,
		ViewerSubdir: "viewer",
		SkipCheckout: true,
		NoInstall:    true,
		Environ:      []string{"PASSWORD=pw", "DURATION=12"},
		RunID:        "run-1",
		Hostname:     "box",
		Progress:     f.progress,
	}
	f.deps = Deps{
		Prereqs:  fakePrereqs{},
		Git:      f.git,
		Go:       f.goRunner,
		LookPath: func(string) (string, error) { return "/usr/bin/go", nil },
		Launcher: f.launcher,
		Self:     self,
		Now:      func() time.Time { return time.Unix(0, 0) },
	}
	return f
}

func (f *fixture) run(t *testing.T) (int, error) {
	t.Helper()
	return New(f.opts, f.deps).Run(context.Background())
}

func (f *fixture) configPath() string {
	return filepath.Join(f.viewer, ".env")
}

func TestRun_PropagatesChildExitCode(t *testing.T) {
	f := newFixture(t)
	f.launcher.proc = fakeProcess{code: 3}

	code, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	require.Len(t, f.launcher.commands, 1)
	cmd := f.launcher.commands[0]
	assert.Equal(t, f.deps.Self, cmd.Path)
	assert.Equal(t, []string{"window", "--env", f.configPath()}, cmd.Args)
	assert.Equal(t, f.viewer, cmd.Dir)
	assert.Contains(t, f.launcher.sawConfig, "PASSWORD=pw\n")
	assert.Contains(t, f.launcher.sawConfig, "DURATION=12\n")

	info, err := os.Stat(f.configPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestRun_PlainFlagReachesChild(t *testing.T) {
	f := newFixture(t)
	f.opts.Plain = true

	_, err := f.run(t)
	require.NoError(t, err)
	args := f.launcher.commands[0].Args
	assert.Equal(t, "--plain", args[len(args)-1])
}

func TestRun_MissingCredentialWritesNothing(t *testing.T) {
	f := newFixture(t)
	src := &fakeSecrets{}
	f.deps.Secrets = src
	f.opts.Secrets = &resolver.SecretsLocation{Repo: "acme/secrets", Path: "viewer.json"}

	code, err := f.run(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, errclass.ErrMissingCredential)
	assert.Equal(t, errclass.ExitSecrets, code)
	assert.Zero(t, src.calls)
	assert.Empty(t, f.launcher.commands)
	assert.NoFileExists(t, f.configPath())
}

func TestRun_SecretsOverrideEnv(t *testing.T) {
	f := newFixture(t)
	f.deps.Secrets = &fakeSecrets{doc: secrets.Document{"PASSWORD": "x", "DURATION": float64(5)}}
	f.opts.Secrets = &resolver.SecretsLocation{Repo: "acme/secrets", Path: "viewer.json"}
	f.opts.Token = "tok"

	code, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, f.launcher.sawConfig, "PASSWORD=x\n")
	assert.Contains(t, f.launcher.sawConfig, "DURATION=5\n")
}

func TestRun_WindowSeesResolvedConfig(t *testing.T) {
	f := newFixture(t)
	f.deps.Secrets = &fakeSecrets{doc: secrets.Document{"PASSWORD": "fromsecrets", "DURATION": float64(5)}}
	f.opts.Secrets = &resolver.SecretsLocation{Repo: "acme/secrets", Path: "viewer.json"}
	f.opts.Token = "tok"
	f.opts.Environ = []string{"PASSWORD=fromenv", "VIEWER_DURATION=999", "PATH=/bin"}

	_, err := f.run(t)
	require.NoError(t, err)
	require.Len(t, f.launcher.commands, 1)
	env := f.launcher.commands[0].Env
	assert.Equal(t, []string{"PATH=/bin"}, env)

	res, err := resolver.Acquire(context.Background(), resolver.WindowRequest(f.configPath(), env), nil)
	require.NoError(t, err)
	assert.Equal(t, "fromsecrets", res.Config.Password())
	assert.Equal(t, 5, res.Config.Duration())
}

func TestRun_SecretsFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.deps.Secrets = &fakeSecrets{err: errclass.ErrRemoteUnavailable.WithMessage("http 404")}
	f.opts.Secrets = &resolver.SecretsLocation{Repo: "acme/secrets", Path: "viewer.json"}
	f.opts.Token = "tok"

	code, err := f.run(t)
	assert.ErrorIs(t, err, errclass.ErrRemoteUnavailable)
	assert.Equal(t, errclass.ExitSecrets, code)
	assert.NoFileExists(t, f.configPath())
}

func TestRun_MissingPassword(t *testing.T) {
	f := newFixture(t)
	f.opts.Environ = nil

	code, err := f.run(t)
	assert.ErrorIs(t, err, errclass.ErrMissingPassword)
	assert.Equal(t, errclass.ExitMissingPassword, code)
}

func TestRun_InteractivePrompt(t *testing.T) {
	f := newFixture(t)
	f.opts.Environ = nil
	f.opts.PromptPassword = func() (string, error) { return "typed", nil }

	_, err := f.run(t)
	require.NoError(t, err)
	assert.Contains(t, f.launcher.sawConfig, "PASSWORD=typed\n")
}

func TestRun_ConfigFilePreservesUnknownKeys(t *testing.T) {
	f := newFixture(t)
	src := filepath.Join(t.TempDir(), "viewer.env")
	require.NoError(t, os.WriteFile(src, []byte("# settings\nPASSWORD=file\nTHEME=dark\n"), 0600))
	f.opts.ConfigFile = src
	f.opts.Environ = nil

	_, err := f.run(t)
	require.NoError(t, err)
	assert.Contains(t, f.launcher.sawConfig, "# settings\n")
	assert.Contains(t, f.launcher.sawConfig, "PASSWORD=file\n")
	assert.Contains(t, f.launcher.sawConfig, "THEME=dark\n")
}

func TestRun_PrerequisiteMissing(t *testing.T) {
	f := newFixture(t)
	f.opts.SkipCheckout = false
	f.deps.Prereqs = fakePrereqs{err: errclass.ErrPrerequisiteMissing.WithMessage("git not found")}

	code, err := f.run(t)
	assert.ErrorIs(t, err, errclass.ErrPrerequisiteMissing)
	assert.Equal(t, errclass.ExitPrerequisiteMissing, code)
	assert.Empty(t, f.git.Calls)
}

func TestRun_Checkout(t *testing.T) {
	f := newFixture(t)
	f.opts.SkipCheckout = false
	f.opts.Branch = "main"

	_, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, []string{"clone --depth 1 --branch main https://github.com/acme/viewer " + f.opts.Dest}, f.git.Commands())
	assert.Contains(t, f.progress.String(), "-> Syncing")
}

func TestRun_CheckoutFailure(t *testing.T) {
	f := newFixture(t)
	f.opts.SkipCheckout = false
	f.git.Responses = map[string]gitexec.FakeResponse{
		"clone --depth 1 https://github.com/acme/viewer " + f.opts.Dest: {Err: errors.New("network down")},
	}

	code, err := f.run(t)
	assert.ErrorIs(t, err, errclass.ErrCheckoutFailed)
	assert.Equal(t, errclass.ExitCheckoutFailed, code)
}

func TestRun_ViewerDirMissing(t *testing.T) {
	f := newFixture(t)
	f.opts.ViewerSubdir = "nope"

	code, err := f.run(t)
	assert.ErrorIs(t, err, errclass.ErrViewerDirMissing)
	assert.Equal(t, errclass.ExitViewerDirMissing, code)
}

func TestRun_UnsafeViewerSubdir(t *testing.T) {
	f := newFixture(t)
	f.opts.ViewerSubdir = "../elsewhere"

	code, err := f.run(t)
	assert.ErrorIs(t, err, errclass.ErrConfigInvalid)
	assert.Equal(t, errclass.ExitConfigInvalid, code)
}

func refResponses(head, want string) map[string]gitexec.FakeResponse {
	return map[string]gitexec.FakeResponse{
		"rev-parse --verify --quiet HEAD^{commit}": {Out: head},
		"rev-parse --verify --quiet v1^{commit}":   {Out: want},
	}
}

func TestRun_RefMismatch(t *testing.T) {
	f := newFixture(t)
	f.opts.VerifyRef = "v1"
	f.git.Responses = refResponses("aaaa", "bbbb")

	code, err := f.run(t)
	assert.ErrorIs(t, err, errclass.ErrRefMismatch)
	assert.Equal(t, errclass.ExitRefMismatch, code)
	assert.Empty(t, f.launcher.commands)
	assert.NoFileExists(t, f.configPath())
}

func TestRun_RefMismatchAllowed(t *testing.T) {
	f := newFixture(t)
	f.opts.VerifyRef = "v1"
	f.opts.AllowRefMismatch = true
	f.git.Responses = refResponses("aaaa", "bbbb")

	code, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, f.progress.String(), "Warning:")
}

func TestRun_RefMatch(t *testing.T) {
	f := newFixture(t)
	f.opts.VerifyRef = "v1"
	f.git.Responses = refResponses("aaaa", "aaaa")

	_, err := f.run(t)
	require.NoError(t, err)
	assert.Contains(t, f.progress.String(), "Checkout matches v1")
}

func TestRun_InstallBuildsViewer(t *testing.T) {
	f := newFixture(t)
	f.opts.NoInstall = false
	require.NoError(t, os.WriteFile(filepath.Join(f.viewer, "go.mod"), []byte("module viewer\n"), 0644))

	_, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, []string{"build -o lockview-viewer ."}, f.goRunner.Commands())
	assert.Equal(t, f.viewer, f.goRunner.Calls[0].Dir)
}

func TestRun_InstallSkippedWithoutGoMod(t *testing.T) {
	f := newFixture(t)
	f.opts.NoInstall = false

	_, err := f.run(t)
	require.NoError(t, err)
	assert.Empty(t, f.goRunner.Calls)
}

func TestRun_InstallWithoutGo(t *testing.T) {
	f := newFixture(t)
	f.opts.NoInstall = false
	f.opts.InstallHelp = true
	f.deps.LookPath = func(string) (string, error) { return "", errors.New("not found") }
	require.NoError(t, os.WriteFile(filepath.Join(f.viewer, "go.mod"), []byte("module viewer\n"), 0644))

	code, err := f.run(t)
	assert.ErrorIs(t, err, errclass.ErrInstallFailed)
	assert.Equal(t, errclass.ExitInstallFailed, code)
	assert.Contains(t, err.Error(), "--no-install")
	assert.Contains(t, err.Error(), "go.dev")
}

func TestRun_InstallBuildFails(t *testing.T) {
	f := newFixture(t)
	f.opts.NoInstall = false
	f.goRunner.Responses = map[string]gitexec.FakeResponse{
		"build -o lockview-viewer .": {Err: errors.New("compile error")},
	}
	require.NoError(t, os.WriteFile(filepath.Join(f.viewer, "go.mod"), []byte("module viewer\n"), 0644))

	code, err := f.run(t)
	assert.ErrorIs(t, err, errclass.ErrInstallFailed)
	assert.Equal(t, errclass.ExitInstallFailed, code)
}

func TestRun_PrefersBuiltViewer(t *testing.T) {
	f := newFixture(t)
	built := filepath.Join(f.viewer, ViewerBinaryName)
	require.NoError(t, os.WriteFile(built, []byte("#!/bin/sh\n"), 0755))

	_, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, built, f.launcher.commands[0].Path)
}

func TestRun_ViewerBinMissing(t *testing.T) {
	f := newFixture(t)
	f.opts.ViewerBin = filepath.Join(t.TempDir(), "missing")

	code, err := f.run(t)
	assert.ErrorIs(t, err, errclass.ErrViewerMissing)
	assert.Equal(t, errclass.ExitViewerMissing, code)
	assert.NoFileExists(t, f.configPath())
}

func TestRun_NoViewerAtAll(t *testing.T) {
	f := newFixture(t)
	f.deps.Self = ""

	code, err := f.run(t)
	assert.ErrorIs(t, err, errclass.ErrViewerMissing)
	assert.Equal(t, errclass.ExitViewerMissing, code)
}

func TestRun_LaunchFailure(t *testing.T) {
	f := newFixture(t)
	f.opts.Cleanup = true
	f.launcher.err = errors.New("exec format error")

	code, err := f.run(t)
	assert.ErrorIs(t, err, errclass.ErrChildFailed)
	assert.Equal(t, errclass.ExitChildFailed, code)
	assert.NoFileExists(t, f.configPath())
}

func TestRun_SignalledChild(t *testing.T) {
	f := newFixture(t)
	f.launcher.proc = fakeProcess{code: errclass.ExitChildFailed, err: errclass.ErrChildFailed.WithMessage("child killed by killed")}

	code, err := f.run(t)
	assert.ErrorIs(t, err, errclass.ErrChildFailed)
	assert.Equal(t, errclass.ExitChildFailed, code)
}

func TestRun_CleanupErasesConfig(t *testing.T) {
	f := newFixture(t)
	f.opts.Cleanup = true

	code, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, f.launcher.sawConfig, "PASSWORD=pw")
	assert.NoFileExists(t, f.configPath())
}

func TestRun_NoCleanupKeepsConfig(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t)
	require.NoError(t, err)
	assert.FileExists(t, f.configPath())
}

func TestRun_Notify(t *testing.T) {
	f := newFixture(t)
	n := &fakeNotifier{}
	f.deps.Notifier = n
	f.opts.Notify = true
	f.opts.Token = "tok"

	_, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/viewer tok Viewer launched"}, n.calls)
	assert.Contains(t, f.progress.String(), "Issue #1 created")
}

func TestRun_NotifyPromptsForToken(t *testing.T) {
	f := newFixture(t)
	n := &fakeNotifier{}
	f.deps.Notifier = n
	f.opts.Notify = true
	f.opts.PromptToken = func() (string, error) { return " typed \n", nil }

	_, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/viewer typed Viewer launched"}, n.calls)
}

func TestRun_NotifySkippedWithoutToken(t *testing.T) {
	f := newFixture(t)
	n := &fakeNotifier{}
	f.deps.Notifier = n
	f.opts.Notify = true

	code, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Empty(t, n.calls)
}

func TestRun_NotifyFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.deps.Notifier = &fakeNotifier{err: errors.New("http 500")}
	f.opts.Notify = true
	f.opts.Token = "tok"
	f.launcher.proc = fakeProcess{code: 0}

	code, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.True(t, strings.Contains(f.progress.String(), "Failed to create issue"))
}

func TestRun_ViewerDirSymlinkEscape(t *testing.T) {
	f := newFixture(t)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(f.opts.Dest, "linked")))
	f.opts.ViewerSubdir = "linked"

	code, err := f.run(t)
	assert.ErrorIs(t, err, errclass.ErrConfigInvalid)
	assert.Equal(t, errclass.ExitConfigInvalid, code)
}

type failingRecorder struct{}

func (failingRecorder) Append(model.LaunchRecord) error { return errors.New("disk full") }

func TestRun_RecordsHistory(t *testing.T) {
	f := newFixture(t)
	log := audit.NewLog(filepath.Join(t.TempDir(), audit.DefaultName))
	f.deps.History = log
	f.launcher.proc = fakeProcess{code: 2}

	code, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 2, code)

	records, err := log.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.EventLaunchStarted, records[0].Event)
	assert.Equal(t, float64(4242), records[0].Details["pid"])
	assert.Equal(t, "run-1", records[0].RunID)
	assert.Equal(t, f.viewer, records[0].ViewerDir)
	assert.Equal(t, model.EventWindowExited, records[1].Event)
	assert.Equal(t, 2, records[1].ExitCode)

	n, err := log.Verify()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRun_RecordsAbortedLaunch(t *testing.T) {
	f := newFixture(t)
	log := audit.NewLog(filepath.Join(t.TempDir(), audit.DefaultName))
	f.deps.History = log
	f.opts.Environ = nil

	code, err := f.run(t)
	require.Error(t, err)
	assert.Equal(t, errclass.ExitMissingPassword, code)

	records, err := log.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.EventLaunchAborted, records[0].Event)
	assert.Equal(t, errclass.ExitMissingPassword, records[0].ExitCode)
	assert.Contains(t, records[0].Details["error"], "E_MISSING_PASSWORD")
}

func TestRun_HistoryFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.deps.History = failingRecorder{}
	f.launcher.proc = fakeProcess{code: 0}

	code, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}
