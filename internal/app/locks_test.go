package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/perfboard/internal/adapters/repository"
	"github.com/okian/perfboard/internal/domain/model"
)

func TestKeyedLocks(t *testing.T) {
	Convey("Given keyed locks", t, func() {
		var k keyedLocks

		Convey("When many goroutines increment under one key", func() {
			counter := 0
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock := k.lock(employeeKey("E1"))
					defer unlock()
					v := counter
					counter = v + 1
				}()
			}
			wg.Wait()

			Convey("Then no increment is lost and the entry is released", func() {
				So(counter, ShouldEqual, 50)
				So(k.locks, ShouldBeEmpty)
			})
		})

		Convey("When two keys are held at once", func() {
			first := k.lock(employeeKey("E1"))
			second := k.lock(userKey("u1"))

			Convey("Then neither blocks the other", func() {
				So(len(k.locks), ShouldEqual, 2)
				first()
				second()
				So(k.locks, ShouldBeEmpty)
			})
		})
	})
}

func TestRecordMetric_RollsBackWhenRefreshFails(t *testing.T) {
	Convey("Given an employee removed while a measurement is being recorded", t, func() {
		ctx := context.Background()
		svc := New()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		c, err := svc.deps()
		So(err, ShouldBeNil)

		emp, err := svc.CreateEmployee(ctx, model.Employee{Name: "Leaver"})
		So(err, ShouldBeNil)

		// Hold the employee so the refresh waits until the record is gone.
		unlock := svc.records.lock(employeeKey(emp.ID))
		done := make(chan error, 1)
		go func() {
			_, err := svc.RecordMetric(ctx, model.PerformanceMetric{EmployeeID: emp.ID, Metric: model.MetricQuality, Value: 70})
			done <- err
		}()

		deadline := time.Now().Add(2 * time.Second)
		for c.store.Count(ctx, model.CollectionPerformance) == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		So(c.store.Count(ctx, model.CollectionPerformance), ShouldEqual, 1)
		So(c.store.Delete(ctx, model.CollectionEmployees, emp.ID), ShouldBeNil)
		unlock()

		Convey("Then the call fails and the measurement is removed again", func() {
			err := <-done
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(c.store.Count(ctx, model.CollectionPerformance), ShouldEqual, 0)
		})
	})
}
