// Package audit records the outcome of every notification dispatch and
// forwards the events to configurable sinks (structured log, Kafka).
package audit
