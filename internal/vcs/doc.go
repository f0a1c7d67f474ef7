// Package vcs defines the repository status model and the Backend contract.
//
// StatusFlags and StatusSnapshot describe working tree state per path. Backend
// implementations live in the gitcli and gogit subpackages.
package vcs
