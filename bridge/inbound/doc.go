// Package inbound decodes the messages received from the bridge peer and routes every
// contained command to its handler.
//
// The reader goroutine pushes raw socket messages into a lock-free FIFO. The tick goroutine
// drains the FIFO with Drain, so handlers always run on the tick goroutine. Lookup order is
// registered handlers, then the builtin session commands. Everything else is logged as
// unrecognized and skipped.
//
// Per interval (default 1s) the dispatcher counts messages, timestamped bundles, the
// cumulative bundle delay and the time spent draining. The counters are reset after every report.
package inbound
