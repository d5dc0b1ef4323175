// Package cache provides a bounded LRU cache for immutable, decoded objects
// such as loaded snapshots.
//
// Capacity is expressed in cost units. Each value is charged by a cost
// function (1 per entry by default), so the cache can be bounded either by
// entry count or by an approximate size.
package cache
