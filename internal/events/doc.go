// Package events defines the notifications emitted by the status core and a
// Bus that fans them out to subscribed observers.
package events
