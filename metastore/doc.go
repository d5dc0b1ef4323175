// Package metastore defines the small key-value store holding project-level
// annotation metadata, and an in-memory implementation.
//
// Implementations must make Update an atomic read-modify-write of a single
// project record. Persistent implementations live in the badger and dynamodb
// subpackages.
package metastore
