// Package doctor checks the launcher's host prerequisites and run directory.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lockview-project/lockview/internal/audit"
	"github.com/lockview-project/lockview/internal/envfile"
	"github.com/lockview-project/lockview/pkg/errclass"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
	Hint        string `json:"hint,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
}

// Tool is an external program the launcher may need.
type Tool struct {
	Name     string
	Required bool
	Purpose  string
}

// Options selects what Check inspects.
type Options struct {
	// RequireGo marks the go toolchain as required (the install step runs).
	RequireGo bool
	// InstallHelp attaches platform install hints to prerequisite findings.
	InstallHelp bool
	// Dest and ViewerSubdir locate the run directory. Empty Dest skips the
	// run directory checks.
	Dest         string
	ViewerSubdir string
	// HistoryPath is the launch history to verify. Empty skips it.
	HistoryPath string
}

// Doctor performs host health checks.
type Doctor struct {
	lookPath func(string) (string, error)
	goos     string
}

// NewDoctor creates a doctor that searches PATH.
func NewDoctor() *Doctor {
	return &Doctor{lookPath: exec.LookPath, goos: runtime.GOOS}
}

// Tools returns the programs a launch needs.
func Tools(requireGo bool) []Tool {
	return []Tool{
		{Name: "git", Required: true, Purpose: "fetch the viewer repository"},
		{Name: "go", Required: requireGo, Purpose: "build the viewer"},
	}
}

// CheckPrerequisites reports a finding for every tool not on PATH. Missing
// required tools are critical; optional ones are warnings.
func (d *Doctor) CheckPrerequisites(tools []Tool, installHelp bool) []Finding {
	var findings []Finding
	for _, tool := range tools {
		if _, err := d.lookPath(tool.Name); err == nil {
			continue
		}
		f := Finding{
			Category:    "prerequisite",
			Description: fmt.Sprintf("%s not found on PATH (needed to %s)", tool.Name, tool.Purpose),
			Severity:    "warning",
		}
		if tool.Required {
			f.Severity = "critical"
		}
		if installHelp {
			f.Hint = InstallHint(tool.Name, d.goos)
		}
		findings = append(findings, f)
	}
	return findings
}

// RequirePrerequisites fails with E_PREREQUISITE_MISSING when a required
// tool is absent.
func (d *Doctor) RequirePrerequisites(tools []Tool, installHelp bool) error {
	var missing []string
	var hints []string
	for _, f := range d.CheckPrerequisites(tools, installHelp) {
		if f.Severity != "critical" {
			continue
		}
		missing = append(missing, f.Description)
		if f.Hint != "" {
			hints = append(hints, f.Hint)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	msg := strings.Join(missing, "; ")
	if len(hints) > 0 {
		msg += " (" + strings.Join(hints, "; ") + ")"
	}
	return errclass.ErrPrerequisiteMissing.WithMessage(msg)
}

// Check runs all diagnostic checks.
func (d *Doctor) Check(opts Options) *Result {
	result := &Result{Healthy: true}

	// 1. Prerequisites
	for _, f := range d.CheckPrerequisites(Tools(opts.RequireGo), opts.InstallHelp) {
		d.add(result, f)
	}

	if opts.HistoryPath != "" {
		d.checkHistory(result, opts.HistoryPath)
	}

	if opts.Dest == "" {
		return result
	}

	// 2. Checkout state
	d.checkCheckout(result, opts.Dest)

	// 3. Leftover runtime config
	if opts.ViewerSubdir != "" {
		d.checkRuntimeConfig(result, filepath.Join(opts.Dest, opts.ViewerSubdir, envfile.DefaultName))
	}

	// 4. Orphan temp files
	d.checkOrphanTmp(result, opts.Dest)

	return result
}

func (d *Doctor) add(result *Result, f Finding) {
	result.Findings = append(result.Findings, f)
	if f.Severity == "critical" || f.Severity == "error" {
		result.Healthy = false
	}
}

func (d *Doctor) checkCheckout(result *Result, dest string) {
	info, err := os.Stat(dest)
	if os.IsNotExist(err) {
		d.add(result, Finding{
			Category:    "checkout",
			Description: "run directory does not exist yet; launch will clone it",
			Severity:    "info",
			Path:        dest,
		})
		return
	}
	if err != nil || !info.IsDir() {
		d.add(result, Finding{
			Category:    "checkout",
			Description: "run directory is not a directory",
			Severity:    "error",
			Path:        dest,
		})
		return
	}
	if _, err := os.Stat(filepath.Join(dest, ".git")); err != nil {
		d.add(result, Finding{
			Category:    "checkout",
			Description: "run directory is not a git checkout; launch will try to clone into it",
			Severity:    "warning",
			Path:        dest,
		})
	}
}

func (d *Doctor) checkHistory(result *Result, path string) {
	if _, err := audit.NewLog(path).Verify(); err != nil {
		d.add(result, Finding{
			Category:    "history",
			Description: err.Error(),
			Severity:    "warning",
			Path:        path,
			Hint:        "move the file aside; a new history starts on the next launch",
		})
	}
}

func (d *Doctor) checkRuntimeConfig(result *Result, path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	d.add(result, Finding{
		Category:    "config",
		Description: "runtime config left on disk; it may hold a password",
		Severity:    "info",
		Path:        path,
	})
	if info.Mode().Perm()&0o077 != 0 {
		d.add(result, Finding{
			Category:    "config",
			Description: fmt.Sprintf("runtime config is readable by others (mode %04o)", info.Mode().Perm()),
			Severity:    "warning",
			Path:        path,
		})
	}
}

func (d *Doctor) checkOrphanTmp(result *Result, root string) {
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}
		if strings.HasPrefix(info.Name(), ".lockview-tmp-") {
			d.add(result, Finding{
				Category:    "tmp",
				Description: fmt.Sprintf("orphan temp file: %s", info.Name()),
				Severity:    "info",
				Path:        path,
			})
		}
		return nil
	})
}

var installHints = map[string]map[string]string{
	"git": {
		"linux":   "install git with your package manager, e.g. `sudo apt-get install git`",
		"darwin":  "install git with `xcode-select --install` or `brew install git`",
		"windows": "install git with `winget install --id Git.Git` or from https://git-scm.com",
	},
	"go": {
		"linux":   "install Go from https://go.dev/dl or `sudo apt-get install golang-go`",
		"darwin":  "install Go with `brew install go` or from https://go.dev/dl",
		"windows": "install Go with `winget install --id GoLang.Go` or from https://go.dev/dl",
	},
}

// InstallHint returns a platform specific install suggestion for tool.
func InstallHint(tool, goos string) string {
	if byOS, ok := installHints[tool]; ok {
		if hint, ok := byOS[goos]; ok {
			return hint
		}
		return byOS["linux"]
	}
	return fmt.Sprintf("install %s and make sure it is on PATH", tool)
}
