// Package input turns captured keyboard and pointer activity into the
// canonical messages consumed by the translation reactor.
package input

import "vtouch/internal/protocol"

// Source produces protocol messages for the reactor.
type Source interface {
	// Run blocks, sending messages to out until the source is exhausted or stopped.
	Run(out chan<- protocol.Message) error

	// Stop asks Run to return.
	Stop() error
}
