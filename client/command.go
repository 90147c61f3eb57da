package client

import "krakenfeed/models"

type commandKind int

const (
	cmdSubscribe commandKind = iota
	cmdUnsubscribe
	cmdShutdown
)

// command is the unit of work sent over the bounded MPSC channel from
// public Client methods into the event loop goroutine, the only goroutine
// permitted to touch the transport, book map and subscription registry
// (spec.md §4.7).
type command struct {
	kind commandKind
	sub  models.Subscription
	done chan error
}
