// Package processor runs the drain loop that delivers queued uploads. One
// goroutine walks pending items oldest first, behind pre-flight gates for
// endpoint configuration, connectivity, metered-transport policy, and remote
// health. Pass pacing, the retry budget, and all collaborators are injected
// through Deps; observers follow along via Subscribe instead of polling.
package processor
