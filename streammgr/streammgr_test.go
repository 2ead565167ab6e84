package streammgr_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/jkluft/conartist/streammgr"
)

var _ = Describe("Manager", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "conartist-streammgr-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("registers a new read-write stream and writes through it", func() {
		m := streammgr.New(dir)
		id, err := m.RegisterNew(1, "alpha", 0x001122334455, 64*1024, 4, 16)
		Expect(err).NotTo(HaveOccurred())

		Expect(m.WriteFixed(id, 1000, 0x001122334455, []byte{1, 2, 3, 4}, 4)).To(Succeed())

		s, ok := m.Get(id)
		Expect(ok).To(BeTrue())
		Expect(s.ItemCount()).To(Equal(1))

		Expect(m.Destroy()).To(Succeed())
	})

	It("returns distinct stream ids for repeated registrations of the same user", func() {
		m := streammgr.New(dir)
		id1, err := m.RegisterNew(1, "a1", 0xAA, 64*1024, 4, 16)
		Expect(err).NotTo(HaveOccurred())
		id2, err := m.RegisterNew(1, "a2", 0xAA, 64*1024, 4, 16)
		Expect(err).NotTo(HaveOccurred())
		Expect(id1).NotTo(Equal(id2))
		Expect(m.Destroy()).To(Succeed())
	})

	It("adopts existing .rwstream files on Scan and reports disk stats", func() {
		seed := streammgr.New(dir)
		_, err := seed.RegisterNew(1, "seeded", 0x99, 64*1024, 4, 16)
		Expect(err).NotTo(HaveOccurred())
		Expect(seed.Destroy()).To(Succeed())

		m := streammgr.New(dir)
		Expect(m.Scan()).To(Succeed())

		_, err = m.DiskStats()
		Expect(err).NotTo(HaveOccurred())

		Expect(m.Destroy()).To(Succeed())
	})

	It("adopts .rostream files one level under the base path", func() {
		sub := filepath.Join(dir, "2024")
		Expect(os.MkdirAll(sub, 0o755)).To(Succeed())

		seed := streammgr.New(sub)
		id, err := seed.RegisterNew(1, "hist", 0x55, 64*1024, 4, 16)
		Expect(err).NotTo(HaveOccurred())
		s, _ := seed.Get(id)
		_ = s
		Expect(seed.Destroy()).To(Succeed())

		// rename the adopted .rwstream into a .rostream to simulate
		// promotion to a historical, read-only stream.
		Expect(os.Rename(
			filepath.Join(sub, "hist.rwstream"),
			filepath.Join(sub, "hist.rostream"),
		)).To(Succeed())

		m := streammgr.New(dir)
		Expect(m.Scan()).To(Succeed())
		Expect(m.Destroy()).To(Succeed())
	})
})
