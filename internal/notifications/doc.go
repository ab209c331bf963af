// Package notifications delivers upload events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Per-event toggles let users silence routine upload chatter while
// keeping failure alerts.
//
// Extend this package if you need alternative transports; the processor
// depends only on the Service interface.
package notifications
