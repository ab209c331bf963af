// Package contacts maps recipient identifiers to display names loaded from a
// read-only JSON file. The queue stores raw identifiers; names are resolved
// only at presentation time.
package contacts
