// Package validator gates commands before execution. It is a best-effort
// denylist heuristic, not a security boundary: encoding tricks and
// environment expansion are out of its reach.
package validator

import (
	"strings"

	"github.com/mustafaguc/command-service/internal/jobs"
)

// denylist covers process-termination and destructive filesystem commands,
// matched as a prefix of the trimmed, lower-cased program name.
var denylist = []string{
	"shutdown",
	"reboot",
	"halt",
	"poweroff",
	"rm",
	"rmdir",
	"del",
	"format",
	"mkfs",
	"dd",
	"kill",
	"pkill",
	"killall",
	"taskkill",
}

// metachars are shell control sequences that must not appear in the program
// name or any argument of an admissible command.
var metachars = []string{"&&", "||", ";", "|", "`", "$("}

// specials is the character set Sanitize escapes.
const specials = "&|;$`\"'\\<>*?~(){}[]"

type CommandValidator struct{}

func New() *CommandValidator {
	return &CommandValidator{}
}

// IsSafe reports whether the command may be executed. It must be called on
// the original, unsanitized command; Sanitize is applied only after this
// gate passes.
func (v *CommandValidator) IsSafe(cmd jobs.Command) bool {
	program := strings.ToLower(strings.TrimSpace(cmd.Program))
	for _, entry := range denylist {
		if strings.HasPrefix(program, entry) {
			return false
		}
	}
	if containsMetachar(cmd.Program) {
		return false
	}
	for _, arg := range cmd.Args {
		if containsMetachar(arg) {
			return false
		}
	}
	return true
}

// Sanitize returns a copy of cmd with every shell-special character in the
// program name and arguments prefixed with a backslash. It only escapes,
// never rejects.
func (v *CommandValidator) Sanitize(cmd jobs.Command) jobs.Command {
	out := jobs.Command{
		Program:    escape(cmd.Program),
		WorkingDir: cmd.WorkingDir,
	}
	if cmd.Args != nil {
		out.Args = make([]string, len(cmd.Args))
		for i, arg := range cmd.Args {
			out.Args[i] = escape(arg)
		}
	}
	return out
}

func containsMetachar(s string) bool {
	for _, m := range metachars {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func escape(s string) string {
	if !strings.ContainsAny(s, specials) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		if strings.ContainsRune(specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
