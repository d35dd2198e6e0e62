// Package errors classifies the failures of calls to the remote service.
//
// A reply with a status in [400, 500) is terminal. Every other failure
// (5xx, transport errors, unreadable success bodies) may be retried. When
// the retry budget runs out the last failure is wrapped in an ExhaustedError.
// KindOf recovers the class from any error in the chain.
package errors
