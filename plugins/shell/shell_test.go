package shell_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jdelaire/openbot/core/command"
	"github.com/jdelaire/openbot/core/message"
	"github.com/jdelaire/openbot/core/permission"
	"github.com/jdelaire/openbot/internal/gatewaytest"
	"github.com/jdelaire/openbot/plugins/shell"
)

func writeManifest(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commands.json")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    string
		want    string
	}{
		{"no args", "echo hello", "", "hello"},
		{"appended args", "echo hello", "world", "hello world"},
		{"placeholder", `echo "hello {} world"`, "crossfit", "hello crossfit world"},
		{"empty placeholder", `echo "hello {} world"`, "", "hello  world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &shell.Entry{Name: "t", Command: tt.command}
			got, err := s.Run(context.Background(), tt.args)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got != tt.want {
				t.Errorf("Run = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunWorkDir(t *testing.T) {
	dir := t.TempDir()
	s := &shell.Entry{Name: "pwd", Command: "pwd", WorkDir: dir}

	got, err := s.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantDir, _ := filepath.EvalSymlinks(dir)
	gotDir, _ := filepath.EvalSymlinks(got)
	if gotDir != wantDir {
		t.Errorf("pwd = %q, want %q", gotDir, wantDir)
	}
}

func TestRunFailure(t *testing.T) {
	s := &shell.Entry{Name: "fail", Command: "echo nope; exit 1"}
	_, err := s.Run(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("err = %v, want output in error", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeManifest(t, `[
		{"name":"uptime","description":"host uptime","command":"uptime"},
		{"name":"deploy","command":"make deploy","access":"sudo","timeout":"5m"}
	]`)

	entries, err := shell.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Access != shell.AccessOwner {
		t.Errorf("default access = %q, want owner", entries[0].Access)
	}
	if entries[1].Access != shell.AccessSudo {
		t.Errorf("access = %q, want sudo", entries[1].Access)
	}
}

func TestLoadMissingFile(t *testing.T) {
	entries, err := shell.Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil || entries != nil {
		t.Fatalf("Load(missing) = %v, %v; want nil, nil", entries, err)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"malformed", `not json`, "parse command manifest"},
		{"missing name", `[{"command":"echo hi"}]`, "missing name"},
		{"missing command", `[{"name":"x"}]`, "missing command field"},
		{"multi word", `[{"name":"x y","command":"echo"}]`, "single word"},
		{"bad access", `[{"name":"x","command":"echo","access":"everyone"}]`, "unknown access"},
		{"bad timeout", `[{"name":"x","command":"echo","timeout":"soon"}]`, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := shell.Load(writeManifest(t, tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestDescriptor(t *testing.T) {
	owner := shell.Entry{Name: "greet", Command: "echo hi", Access: shell.AccessOwner}.Descriptor()
	if !owner.Flags.RequiresOwner {
		t.Error("owner command should require owner")
	}
	sudo := shell.Entry{Name: "greet", Command: "echo hi", Access: shell.AccessSudo}.Descriptor()
	if !sudo.Flags.RequiresSudo || sudo.Flags.RequiresOwner {
		t.Errorf("sudo flags = %+v", sudo.Flags)
	}

	reg := command.NewRegistry()
	if err := reg.Register(owner); err != nil {
		t.Fatal(err)
	}
	m, ok := reg.Resolve(".greet there", ".")
	if !ok {
		t.Fatal("greet did not resolve")
	}

	spy := &gatewaytest.Spy{}
	inv := &command.Invocation{
		Command: m.Command,
		Msg:     message.InboundMessage{ID: "1", ChatID: "c", Text: ".greet there", HasText: true},
		Arg:     m.Arg,
		Perm:    permission.Context{IsOwner: true},
		Gateway: spy,
	}
	res, err := m.Command.Handler(context.Background(), inv)
	if err != nil || res != command.Success {
		t.Fatalf("handler = %v, %v", res, err)
	}
	if spy.LastText() != "hi there" {
		t.Errorf("reply = %q", spy.LastText())
	}
}

func TestCommands(t *testing.T) {
	path := writeManifest(t, `[{"name":"a","command":"true"},{"name":"b","command":"true"}]`)
	descs, err := shell.Commands(path)
	if err != nil {
		t.Fatalf("Commands: %v", err)
	}
	if len(descs) != 2 || descs[0].Pattern != "a ?(.*)" {
		t.Errorf("descs = %+v", descs)
	}
}
