package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mustafaguc/command-service/internal/jobs"
)

func TestIsSafe_Denylist(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		program string
		safe    bool
	}{
		{"plain echo", "echo", true},
		{"plain ls", "ls", true},
		{"go toolchain", "go", true},
		{"rm", "rm", false},
		{"rm uppercase", "RM", false},
		{"rm padded", "  rm  ", false},
		{"shutdown", "shutdown", false},
		{"mkfs variant", "mkfs.ext4", false},
		{"dd", "dd", false},
		{"pkill", "pkill", false},
		{"taskkill", "taskkill", false},
		{"poweroff", "poweroff", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.IsSafe(jobs.Command{Program: tt.program})
			assert.Equal(t, tt.safe, got)
		})
	}
}

func TestIsSafe_Metacharacters(t *testing.T) {
	v := New()

	tests := []struct {
		name string
		cmd  jobs.Command
		safe bool
	}{
		{"chained program", jobs.Command{Program: "echo;ls"}, false},
		{"and in arg", jobs.Command{Program: "echo", Args: []string{"a && b"}}, false},
		{"or in arg", jobs.Command{Program: "echo", Args: []string{"x||y"}}, false},
		{"pipe in arg", jobs.Command{Program: "echo", Args: []string{"a|b"}}, false},
		{"backtick in arg", jobs.Command{Program: "echo", Args: []string{"`id`"}}, false},
		{"subshell in arg", jobs.Command{Program: "echo", Args: []string{"$(whoami)"}}, false},
		{"single ampersand is not a sequence", jobs.Command{Program: "echo", Args: []string{"a&b"}}, true},
		{"clean args", jobs.Command{Program: "echo", Args: []string{"hello", "world"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.safe, v.IsSafe(tt.cmd))
		})
	}
}

func TestSanitize(t *testing.T) {
	v := New()

	t.Run("escapes special characters", func(t *testing.T) {
		out := v.Sanitize(jobs.Command{Program: "echo", Args: []string{"a&b", "$HOME", "back`tick"}})
		assert.Equal(t, "echo", out.Program)
		assert.Equal(t, []string{`a\&b`, `\$HOME`, "back\\`tick"}, out.Args)
	})

	t.Run("clean command untouched", func(t *testing.T) {
		in := jobs.Command{Program: "ls", Args: []string{"-la", "/tmp"}, WorkingDir: "/tmp"}
		out := v.Sanitize(in)
		assert.Equal(t, in, out)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		in := jobs.Command{Program: "echo", Args: []string{"a&b"}}
		_ = v.Sanitize(in)
		assert.Equal(t, []string{"a&b"}, in.Args)
	})
}

// The safety gate always sees the original text; sanitizing happens after,
// and only escapes.
func TestSafetyGateBeforeSanitize(t *testing.T) {
	v := New()

	original := jobs.Command{Program: "echo", Args: []string{"a&b"}}
	require.True(t, v.IsSafe(original))

	sanitized := v.Sanitize(original)
	assert.Equal(t, []string{`a\&b`}, sanitized.Args)
	// The original is unchanged and still the text the gate judged.
	assert.Equal(t, []string{"a&b"}, original.Args)
}
