// Package supervisor prepares the viewer and runs the window as a child
// process.
//
// A launch is a fixed sequence of steps:
//
//	prerequisites -> checkout -> viewer dir -> resolve -> verify ref
//	-> install -> viewer executable -> materialize -> start
//	-> notify -> wait -> cleanup
//
// Every step up to start is fatal and maps to its own exit code. Notify,
// cleanup and the launch history are best effort: they log and never change the exit code. Once
// the child runs its exit code becomes the launcher's.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/lockview-project/lockview/internal/checkout"
	"github.com/lockview-project/lockview/internal/doctor"
	"github.com/lockview-project/lockview/internal/envfile"
	"github.com/lockview-project/lockview/internal/gitexec"
	"github.com/lockview-project/lockview/internal/refverify"
	"github.com/lockview-project/lockview/internal/resolver"
	"github.com/lockview-project/lockview/internal/secrets"
	"github.com/lockview-project/lockview/pkg/errclass"
	"github.com/lockview-project/lockview/pkg/fsutil"
	"github.com/lockview-project/lockview/pkg/logging"
	"github.com/lockview-project/lockview/pkg/model"
	"github.com/lockview-project/lockview/pkg/notify"
	"github.com/lockview-project/lockview/pkg/pathutil"
)

// ViewerBinaryName is what the install step builds inside the viewer dir.
const ViewerBinaryName = "lockview-viewer"

// InstallTimeout bounds the install step.
const InstallTimeout = 10 * time.Minute

// Options describe one launch.
type Options struct {
	Repo         string
	Branch       string
	Dest         string
	ViewerSubdir string
	SkipCheckout bool

	// ConfigFile is the KEY=VALUE source file. Empty means the viewer
	// directory's .env.
	ConfigFile string
	Environ    []string
	Secrets    *resolver.SecretsLocation
	// Token authenticates the secrets fetch and the notification.
	Token string
	// PromptPassword and PromptToken are set only in interactive mode.
	PromptPassword func() (string, error)
	PromptToken    func() (string, error)

	VerifyRef        string
	AllowRefMismatch bool

	NoInstall   bool
	InstallHelp bool
	// ViewerBin replaces the window executable. Empty selects the built
	// viewer, then Self.
	ViewerBin string
	Plain     bool

	Notify  bool
	Cleanup bool

	RunID    string
	Hostname string
	// Progress receives one human-readable line per step.
	Progress io.Writer
}

// Prerequisites checks host tools.
type Prerequisites interface {
	RequirePrerequisites(tools []doctor.Tool, installHelp bool) error
}

// IssueCreator posts the launch notification.
type IssueCreator interface {
	CreateIssue(ctx context.Context, ownerRepo, token string, issue notify.Issue) (*notify.Created, error)
}

// Recorder appends to the launch history.
type Recorder interface {
	Append(rec model.LaunchRecord) error
}

// Deps are the collaborators of a launch. Nil fields get production
// defaults from New, except Secrets, Notifier and History which stay
// optional.
type Deps struct {
	Prereqs  Prerequisites
	Git      gitexec.Runner
	Go       gitexec.Runner
	LookPath func(string) (string, error)
	Secrets  resolver.SecretsSource
	Notifier IssueCreator
	Launcher Launcher
	History  Recorder
	// Self is the lockview executable, used as the window when no other
	// viewer is available.
	Self string
	Now  func() time.Time
}

// Supervisor runs launches.
type Supervisor struct {
	opts Options
	deps Deps
	log  *logging.Logger
}

// New creates a supervisor.
func New(opts Options, deps Deps) *Supervisor {
	if deps.Prereqs == nil {
		deps.Prereqs = doctor.NewDoctor()
	}
	if deps.Git == nil {
		deps.Git = gitexec.Exec{}
	}
	if deps.Go == nil {
		deps.Go = gitexec.Exec{Binary: "go", Timeout: InstallTimeout}
	}
	if deps.LookPath == nil {
		deps.LookPath = execLookPath
	}
	if deps.Launcher == nil {
		deps.Launcher = ExecLauncher{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	fields := map[string]any{"component": "supervisor"}
	if opts.RunID != "" {
		fields["run_id"] = opts.RunID
	}
	return &Supervisor{opts: opts, deps: deps, log: logging.WithFields(fields)}
}

// ViewerDir is the viewer directory inside the checkout.
func (s *Supervisor) ViewerDir() string {
	return filepath.Join(s.opts.Dest, s.opts.ViewerSubdir)
}

// ConfigPath is where the runtime config is materialized.
func (s *Supervisor) ConfigPath() string {
	return filepath.Join(s.ViewerDir(), envfile.DefaultName)
}

func (s *Supervisor) progress(format string, args ...any) {
	fmt.Fprintf(s.opts.Progress, "-> "+format+"\n", args...)
}

// Run performs the launch and returns the process exit code. A non-nil
// error accompanies every non-zero code the launcher itself produced.
func (s *Supervisor) Run(ctx context.Context) (int, error) {
	proc, cfgPath, err := s.prepareAndStart(ctx)
	if err != nil {
		code := errclass.ExitCode(err)
		s.log.ErrorErr("launch aborted", err)
		s.record(model.EventLaunchAborted, code, map[string]any{"error": err.Error()})
		return code, err
	}
	s.record(model.EventLaunchStarted, 0, map[string]any{"pid": proc.Pid()})

	if s.opts.Notify {
		s.notify(ctx)
	}

	code, waitErr := s.wait(proc)
	var details map[string]any
	if waitErr != nil {
		s.log.ErrorErr("window process failed", waitErr, map[string]any{"exit_code": code})
		details = map[string]any{"error": waitErr.Error()}
	} else {
		s.log.Info("window exited", map[string]any{"exit_code": code})
	}
	s.record(model.EventWindowExited, code, details)

	if s.opts.Cleanup {
		if err := fsutil.Erase(cfgPath); err != nil {
			s.log.WarnErr("cleanup failed", err, map[string]any{"path": cfgPath})
		} else {
			s.progress("Removed %s", cfgPath)
			s.log.Info("runtime config erased", map[string]any{"path": cfgPath})
		}
	}
	return code, waitErr
}

func (s *Supervisor) prepareAndStart(ctx context.Context) (Process, string, error) {
	// 1. Prerequisites
	var tools []doctor.Tool
	if !s.opts.SkipCheckout || s.opts.VerifyRef != "" {
		tools = doctor.Tools(false)
	}
	if err := s.deps.Prereqs.RequirePrerequisites(tools, s.opts.InstallHelp); err != nil {
		return nil, "", err
	}
	if err := pathutil.ValidateSubdir(s.opts.ViewerSubdir); err != nil {
		return nil, "", err
	}

	// 2. Checkout
	if !s.opts.SkipCheckout {
		if err := os.MkdirAll(s.opts.Dest, 0755); err != nil {
			return nil, "", errclass.ErrCheckoutFailed.WithMessagef("create %s: %v", s.opts.Dest, err)
		}
		s.progress("Syncing %s into %s", s.opts.Repo, s.opts.Dest)
		if err := checkout.NewSyncer(s.deps.Git).Sync(ctx, s.opts.Repo, s.opts.Dest, s.opts.Branch); err != nil {
			return nil, "", err
		}
	}

	// 3. Viewer directory
	viewerDir := s.ViewerDir()
	if info, err := os.Stat(viewerDir); err != nil || !info.IsDir() {
		return nil, "", errclass.ErrViewerDirMissing.WithMessagef("expected viewer dir %s not found", viewerDir)
	}
	if err := pathutil.ValidatePathSafety(s.opts.Dest, viewerDir); err != nil {
		return nil, "", err
	}

	// 4. Resolve
	source := s.opts.ConfigFile
	if source == "" {
		source = s.ConfigPath()
	}
	res, err := resolver.Acquire(ctx, resolver.Request{
		FilePath:       source,
		Environ:        s.opts.Environ,
		Secrets:        s.opts.Secrets,
		Token:          s.opts.Token,
		PromptPassword: s.opts.PromptPassword,
	}, s.deps.Secrets)
	if err != nil {
		return nil, "", err
	}
	s.log.Info("configuration resolved", res.Config.Redacted())

	// 5. Verify ref
	if s.opts.VerifyRef != "" {
		err := refverify.NewVerifier(s.deps.Git).Check(ctx, s.opts.Dest, s.opts.VerifyRef)
		switch {
		case err == nil:
			s.progress("Checkout matches %s", s.opts.VerifyRef)
		case s.opts.AllowRefMismatch:
			s.log.WarnErr("ref mismatch allowed", err)
			s.progress("Warning: %v", err)
		default:
			return nil, "", err
		}
	}

	// 6. Install
	if err := s.install(ctx, viewerDir); err != nil {
		return nil, "", err
	}

	// 7. Viewer executable
	bin, args, err := s.viewerCommand(viewerDir)
	if err != nil {
		return nil, "", err
	}

	// 8. Materialize
	cfgPath := s.ConfigPath()
	if err := resolver.Materialize(cfgPath, res.Config, res.Base); err != nil {
		return nil, "", classify(err, errclass.ErrConfigInvalid)
	}
	s.progress("Wrote %s (keep this file secure)", cfgPath)

	// 9. Start
	args = append(args, "window", "--env", cfgPath)
	if s.opts.Plain {
		args = append(args, "--plain")
	}
	s.progress("Starting window (enter the password or wait %ds)", res.Config.Duration())
	proc, err := s.deps.Launcher.Start(ctx, Command{
		Path: bin,
		Args: args,
		Dir:  viewerDir,
		Env:  resolver.StripConfigEnv(s.opts.Environ),
	})
	if err != nil {
		if s.opts.Cleanup {
			if eraseErr := fsutil.Erase(cfgPath); eraseErr != nil {
				s.log.WarnErr("cleanup failed", eraseErr, map[string]any{"path": cfgPath})
			}
		}
		return nil, "", classify(err, errclass.ErrChildFailed)
	}
	s.log.Info("window started", map[string]any{"pid": proc.Pid(), "bin": bin})
	return proc, cfgPath, nil
}

// record appends to the launch history when one is configured.
func (s *Supervisor) record(event model.LaunchEvent, code int, details map[string]any) {
	if s.deps.History == nil {
		return
	}
	err := s.deps.History.Append(model.LaunchRecord{
		Timestamp: s.deps.Now(),
		Event:     event,
		RunID:     s.opts.RunID,
		Repo:      s.opts.Repo,
		ViewerDir: s.ViewerDir(),
		ExitCode:  code,
		Details:   details,
	})
	if err != nil {
		s.log.WarnErr("launch history append failed", err)
	}
}

// classify gives err a class unless it already has one.
func classify(err error, class *errclass.LockviewError) error {
	var le *errclass.LockviewError
	if errors.As(err, &le) {
		return err
	}
	return class.WithMessage(err.Error())
}

// install builds the viewer when it carries a go.mod.
func (s *Supervisor) install(ctx context.Context, viewerDir string) error {
	if s.opts.NoInstall {
		return nil
	}
	if _, err := os.Stat(filepath.Join(viewerDir, "go.mod")); err != nil {
		s.log.Debug("viewer has no go.mod, skipping install", map[string]any{"dir": viewerDir})
		return nil
	}
	if _, err := s.deps.LookPath("go"); err != nil {
		msg := "go not found; cannot build the viewer. If it is already built, re-run with --no-install"
		if s.opts.InstallHelp {
			msg += " (" + doctor.InstallHint("go", goos()) + ")"
		}
		return errclass.ErrInstallFailed.WithMessage(msg)
	}
	s.progress("Building viewer in %s", viewerDir)
	if _, err := s.deps.Go.Run(ctx, viewerDir, "build", "-o", ViewerBinaryName, "."); err != nil {
		return errclass.ErrInstallFailed.WithMessage(err.Error())
	}
	return nil
}

// viewerCommand picks the window executable and its leading args.
func (s *Supervisor) viewerCommand(viewerDir string) (string, []string, error) {
	if s.opts.ViewerBin != "" {
		if !isExecutable(s.opts.ViewerBin) {
			return "", nil, errclass.ErrViewerMissing.WithMessagef("viewer %s not found or not executable", s.opts.ViewerBin)
		}
		return s.opts.ViewerBin, nil, nil
	}
	built := filepath.Join(viewerDir, ViewerBinaryName)
	if isExecutable(built) {
		return built, nil, nil
	}
	if s.deps.Self != "" && isExecutable(s.deps.Self) {
		return s.deps.Self, nil, nil
	}
	return "", nil, errclass.ErrViewerMissing.WithMessagef("no viewer executable in %s", viewerDir)
}

// wait blocks on the child. Interrupts reach the child through the
// terminal's process group; the launcher ignores them so it outlives the
// window.
func (s *Supervisor) wait(proc Process) (int, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-sigCh:
				s.log.Debug("interrupt ignored while window runs")
			case <-done:
				return
			}
		}
	}()

	return proc.Wait()
}

// notify posts the launch issue. Failures are logged and swallowed.
func (s *Supervisor) notify(ctx context.Context) {
	if s.deps.Notifier == nil {
		s.log.Warn("notification requested but no notifier configured")
		return
	}
	token := s.opts.Token
	if strings.TrimSpace(token) == "" && s.opts.PromptToken != nil {
		t, err := s.opts.PromptToken()
		if err != nil {
			s.log.WarnErr("token prompt failed, skipping notification", err)
			return
		}
		token = strings.TrimSpace(t)
	}
	if token == "" {
		s.log.Warn("no token, skipping notification")
		return
	}

	owner, repo, err := secrets.ParseOwnerRepo(s.opts.Repo)
	if err != nil {
		s.log.WarnErr("cannot derive notification repository", err, map[string]any{"repo": s.opts.Repo})
		return
	}

	issue := notify.LaunchIssue(s.opts.Hostname, s.opts.RunID, s.deps.Now())
	created, err := s.deps.Notifier.CreateIssue(ctx, owner+"/"+repo, token, issue)
	if err != nil {
		s.log.WarnErr("notification failed", err)
		s.progress("Failed to create issue: %v", err)
		return
	}
	s.progress("Issue #%d created", created.Number)
}
