package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/fgoc/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("Then it starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When a batch id is new", func() {
			seen := d.SeenAndRecord(ctx, "batch-1")

			Convey("Then it is recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And it is submitted again", func() {
				again := d.SeenAndRecord(ctx, "batch-1")

				Convey("Then it is reported as a duplicate", func() {
					So(again, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And it is unrecorded", func() {
				d.Unrecord(ctx, "batch-1")

				Convey("Then it can be submitted again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(ctx, "batch-1"), ShouldBeFalse)
				})
			})
		})

		Convey("When an unknown id is unrecorded", func() {
			d.Unrecord(ctx, "nope")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded deduper at capacity", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"b1", "b2", "b3"} {
			So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
		}

		Convey("When a fourth id arrives", func() {
			So(d.SeenAndRecord(ctx, "b4"), ShouldBeFalse)

			Convey("Then the oldest id is evicted first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "b2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "b3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "b4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "b1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
			})
		})

		Convey("When the middle id is unrecorded", func() {
			d.Unrecord(ctx, "b2")
			So(d.SeenAndRecord(ctx, "b4"), ShouldBeFalse)

			Convey("Then no eviction was needed", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "b1"), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		for _, size := range []int{0, -1} {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(size))
			for i := 0; i < 60000; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("b%d", i))
			}
			So(d.Size(), ShouldEqual, 60000)
			So(d.SeenAndRecord(ctx, "b0"), ShouldBeTrue)
		}
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given concurrent submissions of overlapping ids", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		for g := 0; g < 10; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !d.SeenAndRecord(context.Background(), fmt.Sprintf("b%d", i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each id is fresh exactly once", func() {
			So(fresh, ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}
