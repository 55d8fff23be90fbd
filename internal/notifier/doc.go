// Package notifier delivers rendered reminders asynchronously.
//
// Deliver only enqueues. A small worker pool drains the queue through a
// token bucket and hands each message to the transport with a bounded
// per-send timeout. Failed sends are logged and reported on the event bus;
// they are never retried.
package notifier
