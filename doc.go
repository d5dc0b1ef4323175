// Package varanno provides a versioned variant annotation database for Go.
//
// Annotations are computed by pluggable annotators in runs. Every run writes
// a new version of each payload it produces; older versions stay in place.
// Reads over the current view return, per variant, the payload of the last
// committed run that touched it. Named snapshots freeze the current view.
//
// # Quick Start
//
//	ctx := context.Background()
//	src := source.NewMemory(keys...)
//	db, _ := varanno.Open(ctx, "proj", blobstore.NewLocalStore("./data"), src)
//	defer db.Close()
//
//	s, _ := db.Annotate(ctx, varanno.AnnotateRequest{
//	    Query:     query.All(),
//	    Annotator: annotator.Config{Engine: "cellbase", Name: "cb", Version: "v5"},
//	})
//	fmt.Println(s.Annotated)
//
// # Runs
//
// A run is all or nothing. A failed or canceled run is rolled back and
// returned as a *RunError; the current view is unchanged. Variants already
// owned by an earlier run are only re-annotated with Overwrite set. A run with
// a different annotator identity over annotated data also needs Overwrite.
//
// # Snapshots
//
//	db.SaveAnnotation(ctx, "release-1", varanno.SaveOptions{})
//	for a, err := range db.GetAnnotation(ctx, varanno.Snapshot("release-1"), query.All(), varanno.ReadOptions{}) {
//	    ...
//	}
//
// Snapshots only see committed runs and are immutable once saved.
//
// # Storage
//
// Run segments, the run ledger and snapshots are stored in a BlobStore
// (local disk, memory, S3 or MinIO). Project metadata lives in a
// metastore (memory, Badger or DynamoDB).
package varanno
