package stream_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/jkluft/conartist/cmn/cos"
	"github.com/jkluft/conartist/stream"
)

var _ = Describe("Stream", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "conartist-stream-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("creates, appends, and reads records back", func() {
		path := filepath.Join(dir, "t.rwstream")
		s, err := stream.Create(path, "t", 64*1024, 4, 100)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.WriteItem(1000, 0xAA, []byte{1, 2, 3, 4})).To(Succeed())
		Expect(s.WriteItem(1500, 0xBB, []byte{5, 6, 7, 8})).To(Succeed())
		Expect(s.WriteItem(1500, 0xAA, []byte{9, 10, 11, 12})).To(Succeed())

		Expect(s.ItemCount()).To(Equal(3))
		begin, end := s.TimeRange()
		Expect(begin).To(Equal(uint64(1000)))
		Expect(end).To(Equal(uint64(1500)))

		it := s.NewIterator()
		defer it.Destroy()

		item0, err := it.GetItem(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(item0.Time).To(Equal(uint64(1000)))
		Expect(item0.ID).To(Equal(uint64(0xAA)))
		Expect(item0.Data).To(Equal([]byte{1, 2, 3, 4}))

		item2, err := it.GetItem(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(item2.Time).To(Equal(uint64(1500)))
		Expect(item2.ID).To(Equal(uint64(0xAA)))
		Expect(item2.Data).To(Equal([]byte{9, 10, 11, 12}))

		Expect(s.Close()).To(Succeed())
	})

	It("reads back the same ID for items written with a repeated ID", func() {
		path := filepath.Join(dir, "ids.rwstream")
		s, err := stream.Create(path, "ids", 64*1024, 4, 100)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		Expect(s.WriteItem(1, 0x1, []byte{0})).To(Succeed())
		Expect(s.WriteItem(2, 0x2, []byte{0})).To(Succeed())
		Expect(s.WriteItem(3, 0x1, []byte{0})).To(Succeed())

		it := s.NewIterator()
		defer it.Destroy()
		first, _ := it.GetItem(0)
		third, _ := it.GetItem(2)
		Expect(first.ID).To(Equal(third.ID))
	})

	It("marks a stream full once item_capacity is reached", func() {
		path := filepath.Join(dir, "full.rwstream")
		s, err := stream.Create(path, "full", 64*1024, 4, 2)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		Expect(s.WriteItem(1, 0x1, []byte{1})).To(Succeed())
		Expect(s.WriteItem(2, 0x1, []byte{2})).To(Succeed())

		err = s.WriteItem(3, 0x1, []byte{3})
		Expect(err).To(MatchError(cos.ErrCapacityExceeded))
		Expect(s.Full()).To(BeTrue())

		// a second attempt also fails
		err = s.WriteItem(4, 0x1, []byte{4})
		Expect(err).To(MatchError(cos.ErrCapacityExceeded))
	})

	It("round-trips through close and reopen read-only", func() {
		path := filepath.Join(dir, "rt.rwstream")
		s, err := stream.Create(path, "rt", 64*1024, 4, 100)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.WriteItem(42, 0x7, []byte{9, 9})).To(Succeed())
		Expect(s.Close()).To(Succeed())

		ro, err := stream.OpenRO(path, "rt")
		Expect(err).NotTo(HaveOccurred())
		defer ro.Close()

		it := ro.NewIterator()
		defer it.Destroy()
		item, err := it.GetItem(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(item.Time).To(Equal(uint64(42)))
		Expect(item.ID).To(Equal(uint64(0x7)))
		Expect(item.Data).To(Equal([]byte{9, 9}))
	})

	It("refuses to close while an iterator is live", func() {
		path := filepath.Join(dir, "live.rwstream")
		s, err := stream.Create(path, "live", 64*1024, 4, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.WriteItem(1, 0x1, []byte{0})).To(Succeed())

		it := s.NewIterator()
		Expect(s.Close()).To(MatchError(cos.ErrInvariantViolated))

		it.Destroy()
		Expect(s.Close()).To(Succeed())
	})
})
