package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/perfboard/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("It starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When a key is submitted for the first time", func() {
			id, seen := d.SeenAndRecord(ctx, "submit-1")

			Convey("Then it is recorded as new", func() {
				So(seen, ShouldBeFalse)
				So(id, ShouldBeEmpty)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a retry while in flight is reported without an id", func() {
				id, seen := d.SeenAndRecord(ctx, "submit-1")
				So(seen, ShouldBeTrue)
				So(id, ShouldBeEmpty)
			})

			Convey("And a retry after completion returns the stored id", func() {
				d.Complete(ctx, "submit-1", "feedback-42")
				id, seen := d.SeenAndRecord(ctx, "submit-1")
				So(seen, ShouldBeTrue)
				So(id, ShouldEqual, "feedback-42")
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And unrecording allows it to be retried", func() {
				d.Unrecord(ctx, "submit-1")
				So(d.Size(), ShouldEqual, 0)
				_, seen := d.SeenAndRecord(ctx, "submit-1")
				So(seen, ShouldBeFalse)
			})
		})

		Convey("When unrecording an unknown key", func() {
			d.Unrecord(ctx, "missing")
			d.Complete(ctx, "missing", "x")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded deduper at capacity", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 1; i <= 3; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
		}

		Convey("When another key arrives", func() {
			d.SeenAndRecord(ctx, "k4")

			Convey("Then the oldest key is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				_, seen := d.SeenAndRecord(ctx, "k2")
				So(seen, ShouldBeTrue)
				_, seen = d.SeenAndRecord(ctx, "k1")
				So(seen, ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
		}

		Convey("Then nothing is evicted", func() {
			So(d.Size(), ShouldEqual, 1000)
			_, seen := d.SeenAndRecord(ctx, "k0")
			So(seen, ShouldBeTrue)
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given many goroutines submitting the same keys", t, func() {
		d := dedupe.NewInMemoryDeduper()
		ctx := context.Background()
		const goroutines, keys = 20, 50

		var mu sync.Mutex
		firsts := make(map[string]int)
		var wg sync.WaitGroup
		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for k := 0; k < keys; k++ {
					key := fmt.Sprintf("key-%d", k)
					if _, seen := d.SeenAndRecord(ctx, key); !seen {
						mu.Lock()
						firsts[key]++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each key is new exactly once", func() {
			So(len(firsts), ShouldEqual, keys)
			for _, n := range firsts {
				So(n, ShouldEqual, 1)
			}
			So(d.Size(), ShouldEqual, keys)
		})
	})
}
