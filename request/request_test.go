package request_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/jkluft/conartist/job"
	"github.com/jkluft/conartist/request"
	"github.com/jkluft/conartist/streammgr"
)

var _ = Describe("Pipeline", func() {
	var (
		dir         string
		mappingPath string
		mgr         *streammgr.Manager
		jm          *job.Manager
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "conartist-request-*")
		Expect(err).NotTo(HaveOccurred())

		mappingPath = filepath.Join(dir, "mapping.txt")
		Expect(os.WriteFile(mappingPath, []byte("001122334455=alpha\n"), 0o644)).To(Succeed())

		mgr = streammgr.New(dir)
		jm = job.New(2, 16, 4)
	})

	AfterEach(func() {
		jm.Stop(true)
		os.RemoveAll(dir)
	})

	It("creates the stream once the mapping resolves", func() {
		p, err := request.New(mgr, jm, mappingPath, 4, 8, 2)
		Expect(err).NotTo(HaveOccurred())

		req := &request.Request{
			UserID:       0x001122334455,
			StreamType:   1,
			FileSize:     64 * 1024,
			IDsCapacity:  4,
			ItemCapacity: 16,
		}
		Expect(p.PushRequest(req)).To(Succeed())

		// no mapping loaded yet: the request sits in active.
		p.Update(time.Now())
		_, gotImmediately := p.PopDone()
		Expect(gotImmediately).To(BeFalse())

		// drive reload + creation to completion.
		Eventually(func() bool {
			p.Update(time.Now())
			_, err := os.Stat(filepath.Join(dir, "alpha.rwstream"))
			return err == nil
		}, 2*time.Second, 5*time.Millisecond).Should(BeTrue())

		var done *request.Request
		Eventually(func() bool {
			p.Update(time.Now())
			var ok bool
			done, ok = p.PopDone()
			return ok
		}, 2*time.Second, 5*time.Millisecond).Should(BeTrue())

		Expect(done.Name()).To(Equal("alpha"))
		_, ok, err := done.Result()
		Expect(ok).To(BeTrue())
		Expect(err).NotTo(HaveOccurred())
	})
})
