package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "tourbot dev") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"run"}, {"webhook", "set"}, {"webhook", "delete"}, {"version"}} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Fatalf("%v: %v", path, err)
		}
	}
	del, _, _ := root.Find([]string{"webhook", "delete"})
	if del.Flags().Lookup("drop-pending") == nil {
		t.Fatal("delete lacks --drop-pending")
	}
}

func TestRunFailsWithoutToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("LOG_DIR", t.TempDir())
	root := newRootCmd()
	root.SetArgs([]string{"run", "--env-file", ""})
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err == nil {
		t.Fatal("run without BOT_TOKEN must fail")
	}
}
