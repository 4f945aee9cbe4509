// Package event defines event types for decoupling components in council.
// These events enable observation of the review cycle — rounds opening,
// debates resolving, consensus being computed — without requiring direct
// dependencies between the engines and their observers.
package event
