// Package notifier delivers transfer notifications to the chat transport.
//
// Delivery is synchronous so the poll cycle can observe each outcome and fall
// back to plain text. The service throttles sends with a token bucket and
// bounds every call with a timeout. It does not retry; callers decide what a
// failed send degrades to.
//
// # History
//
// For operator visibility the service keeps a small in-memory history of
// recent deliveries, exposed on the /state endpoint.
package notifier
