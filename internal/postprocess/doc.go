// Package postprocess turns host file notifications into stage, unstage and dirty requests.
//
// Saved, imported and moved-to paths are staged when auto-stage is enabled and marked
// dirty otherwise. Deleted and moved-from paths are always unstaged so the index never
// keeps entries for files that no longer exist. Empty directories are skipped and
// companion files (a path and the same path with the configured suffix) travel together.
package postprocess
