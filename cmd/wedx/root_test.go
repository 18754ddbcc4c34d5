package main

import (
	"errors"
	"io"
	"testing"

	"github.com/spf13/cobra"
)

func TestExecuteClosesLogOnFailure(t *testing.T) {
	closed := 0
	failing := errors.New("cycle failed")
	cmd := &cobra.Command{
		Use:          "fail",
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			cli.closeLog = func() error { closed++; return nil }
			return failing
		},
	}
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	if err := execute(cmd); !errors.Is(err, failing) {
		t.Fatalf("got %v, want %v", err, failing)
	}
	if closed != 1 {
		t.Fatalf("log closed %d times, want 1", closed)
	}
	if cli.closeLog != nil {
		t.Fatalf("closeLog not reset")
	}
}
