// Package ui renders command and status core notifications as console log lines.
//
// Git invocations are logged at debug level because the core runs them on every
// refresh. Update and operation results are logged at info level, failures at warn.
package ui
