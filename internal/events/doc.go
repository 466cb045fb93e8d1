// Package events provides the in-process publish/subscribe bus that carries
// job progress and watch-folder activity to observers.
//
// Every event receives a monotonically increasing sequence number. Consumers
// either hold a Subscription channel or poll with Fetch; in both cases a gap
// in sequence numbers (or Covers returning false) means events were missed and
// the consumer must re-list full state. Ordering is only meaningful per
// publisher; events for different jobs or folders may interleave arbitrarily.
package events
