package lockwindow

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lockview-project/lockview/pkg/logging"
	"github.com/lockview-project/lockview/pkg/model"
)

// Options configures Run.
type Options struct {
	// Plain selects the line-mode renderer instead of the TUI.
	Plain bool
	In    io.Reader
	Out   io.Writer
	Clock Clock
	// AltScreen runs the TUI in the terminal's alternate screen.
	AltScreen bool
	// Interrupts delivers close requests from outside the renderer. When
	// nil, Run subscribes to SIGINT itself.
	Interrupts <-chan os.Signal
	// LogOutput receives the window's log lines while the TUI owns the
	// terminal. Nil discards them. The plain renderer logs to the global
	// output.
	LogOutput io.Writer
}

// windowLogger returns the logger for one window. The TUI redraws the whole
// terminal, so lines written to stderr while it runs would corrupt the frame.
func windowLogger(opts Options) *logging.Logger {
	log := logging.WithFields(map[string]any{"component": "lockwindow"})
	if !opts.Plain {
		out := opts.LogOutput
		if out == nil {
			out = io.Discard
		}
		log.SetOutput(out)
	}
	return log
}

// Run opens the window for cfg and blocks until the session terminates or
// ctx is cancelled. It returns the termination reason.
func Run(ctx context.Context, cfg *model.ViewerConfig, opts Options) (Reason, error) {
	log := windowLogger(opts)
	log.Info("window opened", map[string]any{
		"duration":   cfg.Duration(),
		"overlay":    cfg.OverlaySeconds(),
		"timer_only": cfg.TimerOnly(),
		"plain":      opts.Plain,
	})

	interrupts := opts.Interrupts
	if interrupts == nil {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		defer signal.Stop(sigCh)
		interrupts = sigCh
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	session := NewSession(cfg)
	session.log = log

	var err error
	if opts.Plain {
		err = runPlain(runCtx, session, opts, interrupts)
	} else {
		err = runTUI(runCtx, session, opts, interrupts)
	}

	reason := session.Reason()
	if session.State() == Terminated {
		log.Info("window closed", map[string]any{"reason": reason.String()})
		return reason, nil
	}
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = errors.New("window exited before the session terminated")
	}
	return ReasonNone, err
}

func runPlain(ctx context.Context, s *Session, opts Options, interrupts <-chan os.Signal) error {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	views := make(chan View)
	closes := make(chan View)

	countdown := NewCountdown(s, opts.Clock, func(v View) {
		select {
		case views <- v:
		case <-ctx.Done():
		case <-s.Done():
		}
	})
	stopped := countdown.Start(ctx)

	fwdCtx, stopFwd := context.WithCancel(ctx)
	fwdDone := forwardInterrupts(fwdCtx, s, interrupts, func(v View) {
		select {
		case closes <- v:
		case <-fwdCtx.Done():
		}
	})

	r := &plainRenderer{session: s, in: opts.In, out: opts.Out}
	err := r.run(ctx, views, closes)

	stopFwd()
	<-fwdDone
	<-stopped
	return err
}

func runTUI(ctx context.Context, s *Session, opts Options, interrupts <-chan os.Signal) error {
	progOpts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithoutSignalHandler(),
	}
	if opts.In != nil {
		progOpts = append(progOpts, tea.WithInput(opts.In))
	}
	if opts.Out != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Out))
	}
	if opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	p := tea.NewProgram(NewModel(s), progOpts...)

	loopCtx, stopLoops := context.WithCancel(ctx)
	countdown := NewCountdown(s, opts.Clock, func(v View) { p.Send(tickMsg(v)) })
	stopped := countdown.Start(loopCtx)
	fwdDone := forwardInterrupts(loopCtx, s, interrupts, func(v View) { p.Send(closeMsg(v)) })

	_, err := p.Run()

	stopLoops()
	<-fwdDone
	<-stopped

	if errors.Is(err, tea.ErrProgramKilled) && s.State() == Terminated {
		return nil
	}
	return err
}

// forwardInterrupts turns every signal into a close attempt until ctx ends
// or the session terminates.
func forwardInterrupts(ctx context.Context, s *Session, interrupts <-chan os.Signal, deliver func(View)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.Done():
				return
			case _, ok := <-interrupts:
				if !ok {
					return
				}
				deliver(s.CloseAttempt())
			}
		}
	}()
	return done
}
