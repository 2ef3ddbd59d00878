// Package notifier builds change notifications and fans them out to sinks.
//
// Every request carries the same icon, badge, deduplication tag and click
// target; sinks decide where it is displayed (log, desktop, NATS, host windows).
package notifier
