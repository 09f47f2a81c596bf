// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/deepmon/deepmon/internal/topology"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func twoSocketTopology() *topology.Topology {
	topo, err := topology.New([]topology.CPU{
		{HyperthreadID: 0, CoreID: 0, SocketID: 0},
		{HyperthreadID: 1, CoreID: 0, SocketID: 1},
		{HyperthreadID: 2, CoreID: 0, SocketID: 0},
		{HyperthreadID: 3, CoreID: 0, SocketID: 1},
	})
	Expect(err).NotTo(HaveOccurred())
	return topo
}

func findRecord(recs []RawThreadRecord, id int32) *RawThreadRecord {
	for i := range recs {
		if recs[i].ID == id {
			return &recs[i]
		}
	}
	return nil
}

var _ = Describe("MemorySource", func() {
	var (
		src  *MemorySource
		topo *topology.Topology
	)

	BeforeEach(func() {
		src = NewMemorySource(WithMemoryLogger(slog.Default()))
		topo = twoSocketTopology()
	})

	AfterEach(func() {
		Expect(src.Detach()).To(Succeed())
	})

	Context("when detached", func() {
		It("refuses reads and writes", func() {
			_, err := src.ReadThreadTable()
			Expect(err).To(MatchError(ErrNotAttached))
			_, err = src.ReadSwitchCount()
			Expect(err).To(MatchError(ErrNotAttached))
			Expect(src.WriteSelector(1)).To(MatchError(ErrNotAttached))
			Expect(src.Emit(Event{ID: 1})).To(MatchError(ErrNotAttached))
		})
	})

	Context("when attached", func() {
		BeforeEach(func() {
			Expect(src.Attach(context.Background(), topo, uint64(4*time.Second))).To(Succeed())
		})

		It("rejects a second attach", func() {
			Expect(src.Attach(context.Background(), topo, 1)).To(HaveOccurred())
		})

		It("stores the timeslice", func() {
			Expect(src.Timeslice()).To(Equal(uint64(4 * time.Second)))
			Expect(src.WriteTimeslice(uint64(time.Second))).To(Succeed())
			Expect(src.Timeslice()).To(Equal(uint64(time.Second)))
		})

		It("validates the selector", func() {
			Expect(src.WriteSelector(2)).To(MatchError(ErrInvalidSelector))
			_, err := src.ReadMaxTimestamp(5)
			Expect(err).To(MatchError(ErrInvalidSelector))
		})

		It("stores comms as valid UTF-8", func() {
			Expect(src.Emit(Event{ID: 8, TGID: 8, Comm: "bad\xffname", Socket: 0, TS: 1000})).To(Succeed())
			src.Put(false, RawThreadRecord{ID: 9, TGID: 9, Comm: "\xfe\xff", Slots: [SelectorSlots]SlotCounters{
				{Sockets: make([]SocketCounter, 2)}, {Sockets: make([]SocketCounter, 2)},
			}})

			recs, err := src.ReadThreadTable()
			Expect(err).NotTo(HaveOccurred())
			Expect(findRecord(recs, 8).Comm).To(Equal("bad\uFFFDname"))
			Expect(findRecord(recs, 9).Comm).To(Equal("\uFFFD"))
		})

		It("accumulates events into the published slot", func() {
			Expect(src.Emit(Event{ID: 7, TGID: 7, Comm: "nginx", Socket: 1, Cycles: 100, WeightedCycles: 50, TimeNS: 10, TS: 1000})).To(Succeed())
			Expect(src.Emit(Event{ID: 7, TGID: 7, Comm: "nginx", Socket: 1, Cycles: 100, WeightedCycles: 50, TimeNS: 10, TS: 2000})).To(Succeed())

			recs, err := src.ReadThreadTable()
			Expect(err).NotTo(HaveOccurred())
			rec := findRecord(recs, 7)
			Expect(rec).NotTo(BeNil())
			Expect(rec.Slots[0].Cycles).To(Equal(uint64(200)))
			Expect(rec.Slots[0].Sockets[1]).To(Equal(SocketCounter{WeightedCycles: 100, TS: 2000}))
			Expect(rec.Slots[0].Sockets[0]).To(Equal(SocketCounter{}))
			Expect(rec.Slots[1].Cycles).To(BeZero())

			ts, err := src.ReadMaxTimestamp(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(ts).To(Equal(uint64(2000)))

			count, err := src.ReadSwitchCount()
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(uint64(2)))
		})

		It("resets a slot the first time it is written after a flip", func() {
			Expect(src.Emit(Event{ID: 7, Socket: 0, Cycles: 100, TS: 10})).To(Succeed())
			Expect(src.WriteSelector(1)).To(Succeed())
			Expect(src.Emit(Event{ID: 7, Socket: 0, Cycles: 5, TS: 20})).To(Succeed())
			Expect(src.WriteSelector(0)).To(Succeed())
			Expect(src.Emit(Event{ID: 7, Socket: 0, Cycles: 1, TS: 30})).To(Succeed())

			recs, err := src.ReadThreadTable()
			Expect(err).NotTo(HaveOccurred())
			rec := findRecord(recs, 7)
			Expect(rec.Slots[0].Cycles).To(Equal(uint64(1)))
			Expect(rec.Slots[1].Cycles).To(Equal(uint64(5)))

			count, err := src.ReadSwitchCount()
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(uint64(1)))
		})

		It("keeps idle records apart from threads", func() {
			Expect(src.Emit(Event{ID: 3, Idle: true, Socket: 1, TimeNS: 99})).To(Succeed())

			threads, err := src.ReadThreadTable()
			Expect(err).NotTo(HaveOccurred())
			Expect(threads).To(BeEmpty())

			idles, err := src.ReadIdleTable()
			Expect(err).NotTo(HaveOccurred())
			Expect(idles).To(HaveLen(1))
			Expect(idles[0].Slots[0].TimeNS).To(Equal(uint64(99)))
		})

		It("rejects events for unknown sockets", func() {
			Expect(src.Emit(Event{ID: 1, Socket: 2})).To(HaveOccurred())
		})

		It("returns copies of its records", func() {
			rec := RawThreadRecord{ID: 9}
			for i := range rec.Slots {
				rec.Slots[i].Sockets = make([]SocketCounter, 2)
			}
			src.Put(false, rec)

			recs, err := src.ReadThreadTable()
			Expect(err).NotTo(HaveOccurred())
			recs[0].Slots[0].Sockets[0].TS = 42

			again, err := src.ReadThreadTable()
			Expect(err).NotTo(HaveOccurred())
			Expect(again[0].Slots[0].Sockets[0].TS).To(BeZero())
		})
	})

	Context("with synthetic load", func() {
		It("produces thread and idle records", func() {
			src = NewMemorySource(WithSyntheticLoad())
			Expect(src.Attach(context.Background(), topo, uint64(time.Second))).To(Succeed())

			Eventually(func() int {
				recs, _ := src.ReadThreadTable()
				return len(recs)
			}).WithTimeout(time.Second).Should(BeNumerically(">", 0))

			idles, err := src.ReadIdleTable()
			Expect(err).NotTo(HaveOccurred())
			Expect(len(idles)).To(BeNumerically("<=", topo.HyperthreadCount()))
		})
	})
})
