// Package execshell runs external tools such as git in a testable way.
//
// ShellExecutor wraps a CommandRunner with logging and an observer hook,
// OSCommandRunner is the os/exec implementation, and CommandMessageFormatter
// turns git invocations into readable sentences.
package execshell
