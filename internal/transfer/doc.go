// Package transfer performs single upload attempts over HTTP multipart.
// Outcomes map onto the services error taxonomy so the processor can decide
// between retrying and failing outright.
package transfer
