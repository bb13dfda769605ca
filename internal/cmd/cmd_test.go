package cmd

import (
	"testing"
)

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "weft" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "weft")
	}

	// Compare by Name(), not Use, which includes positional args.
	expected := []string{"provision", "teardown", "list", "info", "allocate", "release", "set-status", "migrate"}
	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range expected {
		if !registered[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestParseThreadID(t *testing.T) {
	tests := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{"9", 9, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parseThreadID(tt.arg)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseThreadID(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseThreadID(%q) = %d, want %d", tt.arg, got, tt.want)
		}
	}
}
