// Package control runs behavior trees on behalf of remote callers.
//
// A Manager owns the live trees, one per started action and parameter set.
// Condition values and action progress are pushed in over HTTP; every update
// re-ticks the affected trees, and actions that newly join the active path
// are forwarded downstream through a Forwarder.
package control
