// Package network reports host connectivity for the drain loop's pre-flight
// gates. Interface classes that bill by the byte (cellular, tethering) are
// flagged metered so the transport policy can skip them.
package network
