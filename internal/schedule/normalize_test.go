package schedule_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"eventsim.app/dispatcher/internal/model"
	"eventsim.app/dispatcher/internal/schedule"
)

var _ = Describe("Normalize", func() {
	DescribeTable("classifies records by their own members",
		func(record string, want model.EventKind) {
			Expect(schedule.Classify(rawEvent(record))).To(Equal(want))
		},
		Entry("routing_key makes a change event", `{"routing_key":"x","payload":{"summary":"B"}}`, model.EventKindChange),
		Entry("links makes a change event", `{"links":[],"payload":{"summary":"B"}}`, model.EventKindChange),
		Entry("plain record is an incident", `{"payload":{"summary":"A"}}`, model.EventKindIncident),
		Entry("nested routing_key does not count", `{"payload":{"summary":"A","routing_key":"x"}}`, model.EventKindIncident),
	)

	It("defaults action to trigger and offset to zero", func() {
		ev, err := schedule.Normalize(rawEvent(`{"payload":{"summary":"A"}}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Summary).To(Equal("A"))
		Expect(ev.Action).To(Equal(model.EventActionTrigger))
		Expect(ev.ScheduleOffset).To(BeZero())
		Expect(ev.Repeats).To(BeEmpty())
	})

	It("keeps an explicit event action", func() {
		ev, err := schedule.Normalize(rawEvent(`{"event_action":"resolve","payload":{"summary":"A"}}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Action).To(Equal(model.EventActionResolve))
	})

	It("reads top-level timing and repeats", func() {
		ev, err := schedule.Normalize(rawEvent(`{
			"payload":{"summary":"A"},
			"timing_metadata":{"schedule_offset":12.5},
			"repeat_schedule":[{"repeat_count":2,"repeat_offset":5}]
		}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(ev.ScheduleOffset).To(Equal(12.5))
		Expect(ev.Repeats).To(Equal([]model.RepeatRule{{RepeatCount: 2, RepeatOffset: 5}}))
	})

	It("prefers nested fields over top-level ones", func() {
		ev, err := schedule.Normalize(rawEvent(`{
			"payload":{
				"summary":"A",
				"timing_metadata":{"schedule_offset":30},
				"repeat_schedule":[{"repeat_count":1,"repeat_offset":10}]
			},
			"timing_metadata":{"schedule_offset":99},
			"repeat_schedule":[{"repeat_count":7,"repeat_offset":1}]
		}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(ev.ScheduleOffset).To(Equal(30.0))
		Expect(ev.Repeats).To(Equal([]model.RepeatRule{{RepeatCount: 1, RepeatOffset: 10}}))
	})

	It("treats an empty nested repeat schedule as present", func() {
		ev, err := schedule.Normalize(rawEvent(`{
			"payload":{"summary":"A","repeat_schedule":[]},
			"repeat_schedule":[{"repeat_count":3,"repeat_offset":1}]
		}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Repeats).To(BeEmpty())
	})

	It("falls back to top-level offset when the nested one is missing", func() {
		ev, err := schedule.Normalize(rawEvent(`{
			"payload":{"summary":"A","timing_metadata":{}},
			"timing_metadata":{"schedule_offset":4}
		}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(ev.ScheduleOffset).To(Equal(4.0))
	})

	It("defaults missing repeat fields to zero", func() {
		ev, err := schedule.Normalize(rawEvent(`{"payload":{"summary":"A"},"repeat_schedule":[{}]}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Repeats).To(Equal([]model.RepeatRule{{}}))
	})

	It("resolves repeat schedules on change events with the nested-first rule", func() {
		ev, err := schedule.Normalize(rawEvent(`{
			"routing_key":"x",
			"payload":{"summary":"B","repeat_schedule":[{"repeat_count":2,"repeat_offset":4}]},
			"repeat_schedule":[{"repeat_count":9,"repeat_offset":1}]
		}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(ev.IsChange()).To(BeTrue())
		Expect(ev.Repeats).To(Equal([]model.RepeatRule{{RepeatCount: 2, RepeatOffset: 4}}))
		Expect(ev.TotalRepeats()).To(Equal(2))
	})

	It("tolerates a non-object payload", func() {
		ev, err := schedule.Normalize(rawEvent(`{"payload":"text"}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Summary).To(BeEmpty())
	})

	DescribeTable("rejects malformed timing",
		func(record string) {
			_, err := schedule.Normalize(rawEvent(record))
			Expect(err).To(MatchError(schedule.ErrInvalidEvent))
		},
		Entry("negative offset", `{"payload":{},"timing_metadata":{"schedule_offset":-1}}`),
		Entry("string offset", `{"payload":{},"timing_metadata":{"schedule_offset":"5"}}`),
		Entry("fractional repeat count", `{"payload":{},"repeat_schedule":[{"repeat_count":1.5}]}`),
		Entry("negative repeat count", `{"payload":{},"repeat_schedule":[{"repeat_count":-2}]}`),
		Entry("negative repeat offset", `{"payload":{},"repeat_schedule":[{"repeat_count":1,"repeat_offset":-3}]}`),
		Entry("repeat schedule not an array", `{"payload":{},"repeat_schedule":{"repeat_count":1}}`),
		Entry("unknown action", `{"payload":{},"event_action":"explode"}`),
		Entry("offset past the delay horizon", `{"payload":{},"timing_metadata":{"schedule_offset":1e10}}`),
		Entry("repeat offset past the delay horizon", `{"payload":{},"repeat_schedule":[{"repeat_count":1,"repeat_offset":1e10}]}`),
		Entry("repeats reaching past the delay horizon", `{"payload":{},"repeat_schedule":[{"repeat_count":10000,"repeat_offset":1e6}]}`),
		Entry("huge repeat count", `{"payload":{},"repeat_schedule":[{"repeat_count":1e12,"repeat_offset":1}]}`),
		Entry("too many repeats across rules", `{"payload":{},"repeat_schedule":[{"repeat_count":6000},{"repeat_count":6000}]}`),
		Entry("malformed schedule on a change event", `{"routing_key":"x","payload":{},"repeat_schedule":"not even an array"}`),
	)

	It("accepts delays right at the horizon", func() {
		ev, err := schedule.Normalize(rawEvent(fmt.Sprintf(
			`{"payload":{},"timing_metadata":{"schedule_offset":%d}}`, schedule.MaxDelaySeconds)))

		Expect(err).NotTo(HaveOccurred())
		Expect(ev.ScheduleOffset).To(Equal(float64(schedule.MaxDelaySeconds)))
	})

	It("reports the index of the failing record", func() {
		_, err := schedule.NormalizeAll([]model.RawEvent{
			rawEvent(`{"payload":{"summary":"ok"}}`),
			rawEvent(`{"payload":{},"timing_metadata":{"schedule_offset":-1}}`),
		})

		Expect(err).To(MatchError(schedule.ErrInvalidEvent))
		Expect(err.Error()).To(ContainSubstring("event 1"))
	})
})
