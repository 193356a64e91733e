// Package availability computes free meeting slots from a calendar's busy
// intervals and a business hours policy.
//
// Business days are enumerated in the policy's zone, intersected with the
// search window, and the busy intervals are subtracted. Each remaining free
// interval is tiled with back-to-back candidates of the requested length.
// A meeting that ends at 10:00 does not block a slot that starts at 10:00.
package availability
