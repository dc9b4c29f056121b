package doctor

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockview-project/lockview/internal/audit"
	"github.com/lockview-project/lockview/pkg/errclass"
	"github.com/lockview-project/lockview/pkg/model"
)

func fakeDoctor(present ...string) *Doctor {
	set := map[string]bool{}
	for _, p := range present {
		set[p] = true
	}
	return &Doctor{
		goos: "linux",
		lookPath: func(name string) (string, error) {
			if set[name] {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		},
	}
}

func TestCheckPrerequisites_AllPresent(t *testing.T) {
	d := fakeDoctor("git", "go")
	assert.Empty(t, d.CheckPrerequisites(Tools(true), true))
}

func TestCheckPrerequisites_MissingGit(t *testing.T) {
	d := fakeDoctor("go")
	findings := d.CheckPrerequisites(Tools(false), false)
	require.Len(t, findings, 1)
	assert.Equal(t, "critical", findings[0].Severity)
	assert.Contains(t, findings[0].Description, "git")
	assert.Empty(t, findings[0].Hint)
}

func TestCheckPrerequisites_OptionalGo(t *testing.T) {
	d := fakeDoctor("git")

	findings := d.CheckPrerequisites(Tools(false), true)
	require.Len(t, findings, 1)
	assert.Equal(t, "warning", findings[0].Severity)
	assert.Contains(t, findings[0].Hint, "go.dev")

	findings = d.CheckPrerequisites(Tools(true), true)
	require.Len(t, findings, 1)
	assert.Equal(t, "critical", findings[0].Severity)
}

func TestRequirePrerequisites(t *testing.T) {
	assert.NoError(t, fakeDoctor("git").RequirePrerequisites(Tools(false), false))

	err := fakeDoctor().RequirePrerequisites(Tools(false), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, errclass.ErrPrerequisiteMissing)
	assert.Equal(t, errclass.ExitPrerequisiteMissing, errclass.ExitCode(err))
	assert.Contains(t, err.Error(), "apt-get install git")
}

func TestInstallHint(t *testing.T) {
	assert.Contains(t, InstallHint("git", "darwin"), "brew")
	assert.Contains(t, InstallHint("git", "windows"), "winget")
	assert.Contains(t, InstallHint("git", "plan9"), "apt-get")
	assert.Contains(t, InstallHint("make", "linux"), "make")
}

func TestCheck_HealthyRunDir(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dest, ".git"), 0755))

	result := fakeDoctor("git", "go").Check(Options{Dest: dest, ViewerSubdir: "viewer"})
	assert.True(t, result.Healthy)
	assert.Empty(t, result.Findings)
}

func TestCheck_MissingRunDir(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "run")
	result := fakeDoctor("git").Check(Options{Dest: dest})
	assert.True(t, result.Healthy)
	require.Len(t, result.Findings, 2)
	assert.Equal(t, "checkout", result.Findings[1].Category)
}

func TestCheck_NotACheckout(t *testing.T) {
	result := fakeDoctor("git").Check(Options{Dest: t.TempDir()})
	require.NotEmpty(t, result.Findings)
	last := result.Findings[len(result.Findings)-1]
	assert.Equal(t, "warning", last.Severity)
}

func TestCheck_LeftoverConfig(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dest, ".git"), 0755))
	viewer := filepath.Join(dest, "viewer")
	require.NoError(t, os.Mkdir(viewer, 0755))
	cfgPath := filepath.Join(viewer, ".env")
	require.NoError(t, os.WriteFile(cfgPath, []byte("PASSWORD=x\n"), 0644))
	require.NoError(t, os.Chmod(cfgPath, 0644))

	result := fakeDoctor("git", "go").Check(Options{Dest: dest, ViewerSubdir: "viewer"})
	require.Len(t, result.Findings, 2)
	assert.Equal(t, "config", result.Findings[0].Category)
	assert.Equal(t, "warning", result.Findings[1].Severity)
	assert.Equal(t, cfgPath, result.Findings[1].Path)
}

func TestCheck_OrphanTmp(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dest, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, ".lockview-tmp-123"), nil, 0600))

	result := fakeDoctor("git", "go").Check(Options{Dest: dest})
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "tmp", result.Findings[0].Category)
	assert.True(t, result.Healthy)
}

func TestCheck_CriticalMakesUnhealthy(t *testing.T) {
	result := fakeDoctor().Check(Options{})
	assert.False(t, result.Healthy)
}

func TestCheck_History(t *testing.T) {
	path := filepath.Join(t.TempDir(), audit.DefaultName)
	log := audit.NewLog(path)
	require.NoError(t, log.Append(model.LaunchRecord{Event: model.EventLaunchStarted, RunID: "a"}))
	require.NoError(t, log.Append(model.LaunchRecord{Event: model.EventWindowExited, RunID: "a"}))

	d := fakeDoctor("git", "go")
	result := d.Check(Options{HistoryPath: path})
	assert.Empty(t, result.Findings)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), string(model.EventWindowExited), string(model.EventLaunchAborted), 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0600))

	result = d.Check(Options{HistoryPath: path})
	assert.True(t, result.Healthy)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "history", result.Findings[0].Category)
	assert.Equal(t, "warning", result.Findings[0].Severity)
}
