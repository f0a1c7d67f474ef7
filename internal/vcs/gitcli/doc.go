// Package gitcli implements vcs.Backend on top of the git executable.
//
// Status is read with `git status --porcelain=v2 -z` and index updates use
// add, reset and checkout, all routed through execshell so every invocation is
// logged and observable.
package gitcli
