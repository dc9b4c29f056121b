package lockwindow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// plainRenderer is the line-mode window. Password attempts arrive one per
// line on in; the countdown and notices are written to out.
type plainRenderer struct {
	session *Session
	in      io.Reader
	out     io.Writer

	overlayShown bool
}

func (p *plainRenderer) run(ctx context.Context, views <-chan View, closes <-chan View) error {
	lines := make(chan string)
	eof := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(eof)
		sc := bufio.NewScanner(p.in)
		for sc.Scan() {
			select {
			case lines <- strings.TrimRight(sc.Text(), "\r"):
			case <-stop:
				return
			}
		}
	}()

	p.render(p.session.View(), false)
	fmt.Fprintln(p.out, "Enter password to unlock:")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-p.session.Done():
			p.finish()
			return nil

		case v := <-views:
			p.render(v, false)

		case v := <-closes:
			p.render(v, true)

		case line := <-lines:
			if p.session.Submit(line) {
				p.finish()
				return nil
			}
			p.render(p.session.View(), true)

		case <-eof:
			// End of input counts as a close attempt; the timer keeps running.
			eof = nil
			lines = nil
			p.render(p.session.CloseAttempt(), true)
		}
	}
}

// render prints the countdown line. Notices are printed only for views
// produced by user events, not on every tick.
func (p *plainRenderer) render(v View, event bool) {
	if v.State == Terminated {
		return
	}
	if v.OverlayVisible && !p.overlayShown {
		p.overlayShown = true
		fmt.Fprintln(p.out, strings.Trim(overlayArt, "\n"))
	}
	if event && v.Notice != "" {
		fmt.Fprintln(p.out, v.Notice)
	}
	fmt.Fprintf(p.out, "Time remaining: %ds\n", v.Remaining)
}

func (p *plainRenderer) finish() {
	switch p.session.Reason() {
	case ReasonPassword:
		fmt.Fprintln(p.out, "Unlocked.")
	case ReasonExpired:
		fmt.Fprintln(p.out, "Time is up.")
	}
}
