package varanno_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/varanno"
	"github.com/hupe1980/varanno/annotator"
	"github.com/hupe1980/varanno/blobstore"
	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/query"
	"github.com/hupe1980/varanno/source"
)

func exampleSource() *source.Memory {
	src := source.NewMemory()
	for _, id := range []string{"1:100:A:C", "1:200:G:T", "2:100:A:T"} {
		k, err := model.ParseVariantKey(id)
		if err != nil {
			log.Fatal(err)
		}
		src.Add(k)
	}
	return src
}

// Example_annotate runs an annotator over every variant and reads the result.
func Example_annotate() {
	ctx := context.Background()

	db, err := varanno.Open(ctx, "proj", blobstore.NewMemoryStore(), exampleSource())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	s, err := db.Annotate(ctx, varanno.AnnotateRequest{
		RunID:     "r1",
		Query:     query.All(),
		Annotator: annotator.Config{Engine: annotator.EngineDummy, Name: "k1", Version: "v1"},
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(s.State, s.Annotated)

	q, _ := query.Parse("1")
	for a, err := range db.GetAnnotation(ctx, varanno.Current(), q, varanno.ReadOptions{}) {
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(a.Key, a.RunID)
	}
	// Output:
	// committed 3
	// 1:100:A:C r1
	// 1:200:G:T r1
}

// Example_snapshot saves the current view and reads it back after a newer run.
func Example_snapshot() {
	ctx := context.Background()

	db, err := varanno.Open(ctx, "proj", blobstore.NewMemoryStore(), exampleSource())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	run := func(id, version string) {
		_, err := db.Annotate(ctx, varanno.AnnotateRequest{
			RunID:     varanno.RunID(id),
			Query:     query.All(),
			Annotator: annotator.Config{Engine: annotator.EngineDummy, Name: "k1", Version: version},
			Overwrite: true,
		})
		if err != nil {
			log.Fatal(err)
		}
	}

	run("r1", "v1")
	if _, err := db.SaveAnnotation(ctx, "release-1", varanno.SaveOptions{}); err != nil {
		log.Fatal(err)
	}
	run("r2", "v1")

	for _, sel := range []varanno.Selector{varanno.Current(), varanno.Snapshot("release-1")} {
		for a, err := range db.GetAnnotation(ctx, sel, query.All(), varanno.ReadOptions{Limit: 1}) {
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println(sel, a.RunID)
		}
	}
	// Output:
	// CURRENT r2
	// release-1 r1
}
