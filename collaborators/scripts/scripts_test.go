package scripts

import (
	"testing"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

func withMockShell(t *testing.T, commands []shell.MockCommand) *shell.MockExecutor {
	t.Helper()
	mock := shell.NewMockExecutor(commands)
	original := shell.Default
	shell.Default = mock
	t.Cleanup(func() { shell.Default = original })
	return mock
}

func TestRun_SkipsScriptsForOtherPhases(t *testing.T) {
	mock := withMockShell(t, nil)
	r := NewShellRunner()
	list := []config.Script{{Name: "a", Phase: config.PhasePostProvision, Path: "/opt/a.sh"}}

	if err := r.Run(list, config.PhasePostConfigure, "", Environment{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.Calls) != 0 {
		t.Fatalf("expected no shell calls, got %v", mock.Calls)
	}
}

func TestRun_ExecutesMatchingScriptsInOrder(t *testing.T) {
	mock := withMockShell(t, []shell.MockCommand{
		{Pattern: `/opt/a\.sh`, Output: "", Error: nil},
		{Pattern: `/opt/b\.sh`, Output: "", Error: nil},
	})
	r := NewShellRunner()
	list := []config.Script{
		{Name: "a", Phase: config.PhasePostConfigure, Path: "/opt/a.sh"},
		{Name: "skip", Phase: config.PhasePostProvision, Path: "/opt/skip.sh"},
		{Name: "b", Phase: config.PhasePostConfigure, Path: "/opt/b.sh"},
	}

	if err := r.Run(list, config.PhasePostConfigure, "/mnt/newroot", Environment{
		ServicingType: config.CleanInstall,
		TargetRoot:    "/mnt/newroot",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.Calls) != 2 {
		t.Fatalf("expected exactly 2 shell calls, got %v", mock.Calls)
	}
}

func TestRun_RejectsScriptWithEmptyPath(t *testing.T) {
	withMockShell(t, nil)
	r := NewShellRunner()
	list := []config.Script{{Name: "bad", Phase: config.PhasePostConfigure, Path: ""}}

	if err := r.Run(list, config.PhasePostConfigure, "", Environment{}); err == nil {
		t.Fatal("expected an error for an empty script path")
	}
}

func TestEnvironment_OmitsPhonehomeWhenEmpty(t *testing.T) {
	e := Environment{ServicingType: config.NormalUpdate, TargetRoot: "/"}
	vars := e.envVars()
	for _, v := range vars {
		if v == "PHONEHOME_URL=" {
			t.Fatal("expected PHONEHOME_URL to be omitted, not set empty")
		}
	}
	if len(vars) != 2 {
		t.Fatalf("expected 2 env vars, got %v", vars)
	}
}
