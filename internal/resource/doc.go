// Package resource governs the shared resources of one project: the run lease
// that serializes annotation runs, and the IO budget of segment and snapshot
// writes.
//
// # Run Lease
//
// At most MaxConcurrentRuns annotation runs hold the lease at a time (one by
// default). AcquireRun blocks until the lease is free or ctx is done:
//
//	rc := resource.NewController(resource.Config{})
//	if err := rc.AcquireRun(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseRun()
//
// # IO Rate Limiting
//
// A token bucket limits write throughput so a long run does not starve
// concurrent readers of the blob store:
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 100 * 1024 * 1024, // 100MB/s
//	})
//	if err := rc.AcquireIO(ctx, len(data)); err != nil {
//	    return err
//	}
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
