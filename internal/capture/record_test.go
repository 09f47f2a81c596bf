// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"encoding/binary"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// encodePidStatus lays out a pid_status value the way the capture program does
func encodePidStatus(rec RawThreadRecord, sockets int) []byte {
	buf := make([]byte, pidStatusSize(sockets))
	le := binary.LittleEndian
	le.PutUint32(buf[0:], uint32(rec.ID))
	le.PutUint32(buf[4:], uint32(rec.TGID))
	copy(buf[8:8+commLen], rec.Comm)

	off := 8 + commLen
	put := func(v uint64) {
		le.PutUint64(buf[off:], v)
		off += 8
	}
	for _, field := range []func(SlotCounters) uint64{
		func(s SlotCounters) uint64 { return s.Cycles },
		func(s SlotCounters) uint64 { return s.Instructions },
		func(s SlotCounters) uint64 { return s.CacheMisses },
		func(s SlotCounters) uint64 { return s.CacheRefs },
		func(s SlotCounters) uint64 { return s.TimeNS },
	} {
		for sel := 0; sel < SelectorSlots; sel++ {
			put(field(rec.Slots[sel]))
		}
	}
	for s := 0; s < sockets; s++ {
		for sel := 0; sel < SelectorSlots; sel++ {
			put(rec.Slots[sel].Sockets[s].WeightedCycles)
		}
	}
	for s := 0; s < sockets; s++ {
		for sel := 0; sel < SelectorSlots; sel++ {
			put(rec.Slots[sel].Sockets[s].TS)
		}
	}
	return buf
}

var _ = Describe("pidStatus", func() {
	It("has the expected size per socket count", func() {
		Expect(pidStatusSize(1)).To(Equal(136))
		Expect(pidStatusSize(2)).To(Equal(168))
	})

	It("decodes a two socket record", func() {
		want := RawThreadRecord{
			ID: 4242, TGID: 4240, Comm: "postgres",
			Slots: [SelectorSlots]SlotCounters{
				{
					Cycles: 1, Instructions: 2, CacheMisses: 3, CacheRefs: 4, TimeNS: 5,
					Sockets: []SocketCounter{{WeightedCycles: 10, TS: 100}, {WeightedCycles: 20, TS: 200}},
				},
				{
					Cycles: 6, Instructions: 7, CacheMisses: 8, CacheRefs: 9, TimeNS: 10,
					Sockets: []SocketCounter{{WeightedCycles: 30, TS: 300}, {WeightedCycles: 40, TS: 400}},
				},
			},
		}

		var got pidStatus
		Expect(got.UnmarshalBinary(encodePidStatus(want, 2))).To(Succeed())
		Expect(got.RawThreadRecord).To(Equal(want))
		Expect(got.Slot(1).Sockets[1].TS).To(Equal(uint64(400)))
	})

	It("trims the comm at the first NUL", func() {
		rec := RawThreadRecord{Comm: "kworker/0:1"}
		for i := range rec.Slots {
			rec.Slots[i].Sockets = make([]SocketCounter, 1)
		}
		var got pidStatus
		Expect(got.UnmarshalBinary(encodePidStatus(rec, 1))).To(Succeed())
		Expect(got.Comm).To(Equal("kworker/0:1"))
	})

	It("replaces invalid UTF-8 in the comm", func() {
		rec := RawThreadRecord{Comm: "bad\xffname"}
		for i := range rec.Slots {
			rec.Slots[i].Sockets = make([]SocketCounter, 1)
		}
		var got pidStatus
		Expect(got.UnmarshalBinary(encodePidStatus(rec, 1))).To(Succeed())
		Expect(got.Comm).To(Equal("bad\uFFFDname"))
		Expect(utf8.ValidString(got.Comm)).To(BeTrue())
	})

	DescribeTable("rejects malformed sizes",
		func(size int) {
			var got pidStatus
			Expect(got.UnmarshalBinary(make([]byte, size))).To(MatchError(ContainSubstring("invalid pid_status size")))
		},
		Entry("empty", 0),
		Entry("header only", pidStatusHeaderSize),
		Entry("partial socket", pidStatusSize(1)+8),
	)
})
