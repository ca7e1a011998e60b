package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommandShort(t *testing.T) {
	cmd := versionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--short"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version --short failed: %v", err)
	}
}

func TestInspectCommandFlags(t *testing.T) {
	cmd := inspectCmd()
	if cmd.Flags().Lookup("addr") == nil {
		t.Error("inspect command should define --addr")
	}
	if cmd.Flags().Lookup("demo") == nil {
		t.Error("inspect command should define --demo")
	}
	if !strings.Contains(cmd.Use, "inspect") {
		t.Errorf("unexpected use line %q", cmd.Use)
	}
}
