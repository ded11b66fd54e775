package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunCommand(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		wantErr        bool
		expectedOutput string
	}{
		{
			name:           "run command with help",
			args:           []string{"run", "--help"},
			wantErr:        false,
			expectedOutput: "print the run report",
		},
		{
			name:           "run command help documents dry-run",
			args:           []string{"run", "--help"},
			wantErr:        false,
			expectedOutput: "--dry-run",
		},
		{
			name:           "run command with invalid days-back",
			args:           []string{"run", "--days-back", "soon"},
			wantErr:        true,
			expectedOutput: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.expectedOutput != "" && !strings.Contains(buf.String(), tt.expectedOutput) {
				t.Errorf("Expected output to contain %q, got %q", tt.expectedOutput, buf.String())
			}
		})
	}
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCmd()
	runCmd, _, err := cmd.Find([]string{"run"})
	if err != nil {
		t.Fatalf("Failed to find run command: %v", err)
	}

	for _, name := range []string{"podcasts", "days-back", "mode", "dry-run"} {
		if runCmd.Flags().Lookup(name) == nil {
			t.Errorf("Expected %s flag to be registered", name)
		}
	}

	// Processing, not printing, must be the default
	dryRun := runCmd.Flags().Lookup("dry-run")
	if dryRun != nil && dryRun.DefValue != "false" {
		t.Errorf("Expected dry-run to default to false, got %s", dryRun.DefValue)
	}
}
