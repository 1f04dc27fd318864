package policy

// DenyList is a fixed set of qualified callable names that evaluated
// code must never reach, even when a permitted call returns one of them.
//
// Contract:
// - Concurrency: DenyList is immutable after construction and safe for
//   concurrent use.
type DenyList struct {
	names map[string]struct{}
}

// NewDenyList builds a deny list from qualified names such as
// "os.system" or "eval".
func NewDenyList(names []string) *DenyList {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return &DenyList{names: set}
}

// Denied reports whether the qualified callable name is on the list.
func (d *DenyList) Denied(qualified string) bool {
	if d == nil {
		return false
	}
	_, ok := d.names[qualified]
	return ok
}

// DefaultDenyList covers process, filesystem, and eval/exec class
// primitives. The list blocks the name regardless of how evaluated code
// obtained a reference to it; a callable on the list is reachable only
// when the host installed that exact callable as a static tool.
func DefaultDenyList() *DenyList {
	return NewDenyList([]string{
		"builtins.compile",
		"builtins.eval",
		"builtins.exec",
		"builtins.globals",
		"builtins.locals",
		"builtins.__import__",
		"builtins.input",
		"builtins.open",
		"builtins.exit",
		"builtins.quit",
		"os.system",
		"os.popen",
		"os.spawnl",
		"os.exec",
		"os.execv",
		"os.execve",
		"os.fork",
		"os.kill",
		"os.remove",
		"os.rmdir",
		"os.unlink",
		"posix.system",
		"pty.spawn",
		"shutil.rmtree",
		"subprocess.run",
		"subprocess.call",
		"subprocess.check_call",
		"subprocess.check_output",
		"subprocess.Popen",
		"multiprocessing.Process",
		"socket.socket",
	})
}
