// Package services defines the shared upload failure taxonomy used by the
// transfer executor and the queue processor.
package services
