// Package gogit implements vcs.Backend with the pure Go go-git library.
package gogit
