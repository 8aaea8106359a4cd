package analysis_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/noopta/situationship-ai/internal/analysis"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// recorder counts calls and keeps what merge received.
type recorder struct {
	analyzeCalls atomic.Int32
	mergeCalls   atomic.Int32

	mu       sync.Mutex
	mergedIn []string
}

func (r *recorder) analyze(_ context.Context, group []int) (string, error) {
	r.analyzeCalls.Add(1)
	parts := make([]string, len(group))
	for i, v := range group {
		parts[i] = fmt.Sprint(v)
	}
	return "g" + strings.Join(parts, ","), nil
}

func (r *recorder) merge(_ context.Context, partials []string) (string, error) {
	r.mergeCalls.Add(1)
	r.mu.Lock()
	r.mergedIn = append([]string(nil), partials...)
	r.mu.Unlock()
	return strings.Join(partials, "|"), nil
}

var _ = Describe("Analyzer", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("call counts", func() {
		DescribeTable("analyzes each group once and merges once",
			func(groupCount int) {
				rec := &recorder{}
				a := analysis.New(3, rec.analyze, rec.merge)

				groups := analysis.Chunk(seq(groupCount*2), 2)
				_, err := a.Run(ctx, groups)

				Expect(err).NotTo(HaveOccurred())
				Expect(rec.analyzeCalls.Load()).To(Equal(int32(groupCount)))
				Expect(rec.mergeCalls.Load()).To(Equal(int32(1)))
				Expect(rec.mergedIn).To(HaveLen(groupCount))
			},
			Entry("zero groups", 0),
			Entry("one group", 1),
			Entry("three groups", 3),
			Entry("ten groups", 10),
		)

		It("still merges an empty list when there are no groups", func() {
			rec := &recorder{}
			var received []string
			merge := func(_ context.Context, partials []string) (string, error) {
				received = partials
				return "", nil
			}
			a := analysis.New(3, rec.analyze, merge)

			final, err := a.Run(ctx, nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(final).To(BeEmpty())
			Expect(rec.analyzeCalls.Load()).To(BeZero())
			Expect(received).NotTo(BeNil())
			Expect(received).To(BeEmpty())
		})
	})

	It("handles five images in groups of two", func() {
		rec := &recorder{}
		a := analysis.New(3, rec.analyze, rec.merge)

		final, err := a.Run(ctx, analysis.Chunk(seq(5), 2))

		Expect(err).NotTo(HaveOccurred())
		Expect(rec.analyzeCalls.Load()).To(Equal(int32(3)))
		Expect(rec.mergedIn).To(Equal([]string{"g0,1", "g2,3", "g4"}))
		Expect(final).To(Equal("g0,1|g2,3|g4"))
	})

	It("keeps group order when calls complete in reverse", func() {
		const n = 5
		release := make([]chan struct{}, n)
		done := make([]chan struct{}, n)
		for i := range release {
			release[i] = make(chan struct{})
			done[i] = make(chan struct{})
		}

		var mu sync.Mutex
		var completion []int

		analyze := func(_ context.Context, g int) (string, error) {
			<-release[g]
			mu.Lock()
			completion = append(completion, g)
			mu.Unlock()
			close(done[g])
			return fmt.Sprintf("r%d", g), nil
		}
		var merged []string
		merge := func(_ context.Context, partials []string) (string, error) {
			merged = partials
			return "ok", nil
		}

		a := analysis.New(n, analyze, merge)
		errCh := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			_, err := a.Run(ctx, []int{0, 1, 2, 3, 4})
			errCh <- err
		}()

		for i := n - 1; i >= 0; i-- {
			close(release[i])
			Eventually(done[i]).Should(BeClosed())
		}

		Eventually(errCh).Should(Receive(BeNil()))
		Expect(completion).To(Equal([]int{4, 3, 2, 1, 0}))
		Expect(merged).To(Equal([]string{"r0", "r1", "r2", "r3", "r4"}))
	})

	It("keeps group order under random delays", func() {
		analyze := func(_ context.Context, g int) (string, error) {
			time.Sleep(time.Duration((7*g)%5) * time.Millisecond)
			return fmt.Sprintf("r%d", g), nil
		}
		var merged []string
		merge := func(_ context.Context, partials []string) (string, error) {
			merged = partials
			return "ok", nil
		}

		_, err := analysis.New(3, analyze, merge).Run(ctx, seq(10))

		Expect(err).NotTo(HaveOccurred())
		expected := make([]string, 10)
		for i := range expected {
			expected[i] = fmt.Sprintf("r%d", i)
		}
		Expect(merged).To(Equal(expected))
	})

	It("never runs more than the concurrency limit at once", func() {
		var inFlight, peak atomic.Int32
		release := make(chan struct{})

		analyze := func(_ context.Context, g int) (string, error) {
			now := inFlight.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			<-release
			inFlight.Add(-1)
			return "x", nil
		}
		merge := func(_ context.Context, partials []string) (string, error) {
			return "merged", nil
		}

		a := analysis.New(3, analyze, merge)
		errCh := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			_, err := a.Run(ctx, seq(10))
			errCh <- err
		}()

		Eventually(inFlight.Load).Should(Equal(int32(3)))
		Consistently(inFlight.Load, 100*time.Millisecond, 10*time.Millisecond).Should(Equal(int32(3)))

		close(release)

		Eventually(errCh).Should(Receive(BeNil()))
		Expect(peak.Load()).To(Equal(int32(3)))
	})

	Describe("failures", func() {
		It("fails with *Error and never merges when a group fails", func() {
			cause := errors.New("rate limited")
			var mergeCalls atomic.Int32

			analyze := func(_ context.Context, g int) (string, error) {
				if g == 2 {
					return "", cause
				}
				return "ok", nil
			}
			merge := func(_ context.Context, partials []string) (string, error) {
				mergeCalls.Add(1)
				return "merged", nil
			}

			final, err := analysis.New(3, analyze, merge).Run(ctx, seq(4))

			Expect(final).To(BeEmpty())
			Expect(err).To(MatchError(analysis.ErrAnalysisFailed))
			Expect(errors.Is(err, cause)).To(BeTrue())

			var failure *analysis.Error
			Expect(errors.As(err, &failure)).To(BeTrue())
			Expect(failure.Stage).To(Equal(analysis.StageAnalyze))
			Expect(failure.Group).To(Equal(2))
			Expect(failure.Error()).To(Equal("analysis failed: analyze group 2: rate limited"))
			Expect(mergeCalls.Load()).To(BeZero())
		})

		It("does not start waiting groups after a failure", func() {
			var calls atomic.Int32
			analyze := func(_ context.Context, g int) (string, error) {
				if calls.Add(1) == 1 {
					return "", errors.New("boom")
				}
				return "ok", nil
			}
			merge := func(_ context.Context, partials []string) (string, error) {
				return "merged", nil
			}

			_, err := analysis.New(1, analyze, merge).Run(ctx, seq(5))

			Expect(err).To(MatchError(analysis.ErrAnalysisFailed))
			Expect(calls.Load()).To(Equal(int32(1)))
		})

		It("returns the failure without waiting for calls still in flight", func() {
			siblingStarted := make(chan struct{})
			releaseSibling := make(chan struct{})
			siblingDone := make(chan struct{})
			var siblingCtxErr atomic.Value
			var mergeCalls atomic.Int32

			analyze := func(callCtx context.Context, g int) (string, error) {
				if g == 0 {
					<-siblingStarted
					return "", errors.New("boom")
				}
				defer close(siblingDone)
				close(siblingStarted)
				<-releaseSibling
				siblingCtxErr.Store(fmt.Sprint(callCtx.Err()))
				return "late", nil
			}
			merge := func(_ context.Context, partials []string) (string, error) {
				mergeCalls.Add(1)
				return "merged", nil
			}

			errCh := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := analysis.New(2, analyze, merge).Run(ctx, []int{0, 1})
				errCh <- err
			}()

			var err error
			Eventually(errCh).Should(Receive(&err))
			Expect(siblingDone).NotTo(BeClosed())

			var failure *analysis.Error
			Expect(errors.As(err, &failure)).To(BeTrue())
			Expect(failure.Group).To(Equal(0))

			close(releaseSibling)
			Eventually(siblingDone).Should(BeClosed())
			Expect(siblingCtxErr.Load()).To(Equal("<nil>"))
			Consistently(mergeCalls.Load, 50*time.Millisecond).Should(BeZero())
		})

		It("wraps merge failures", func() {
			cause := errors.New("merge exploded")
			rec := &recorder{}
			merge := func(_ context.Context, partials []string) (string, error) {
				return "", cause
			}

			_, err := analysis.New(3, rec.analyze, merge).Run(ctx, analysis.Chunk(seq(3), 2))

			var failure *analysis.Error
			Expect(errors.As(err, &failure)).To(BeTrue())
			Expect(failure.Stage).To(Equal(analysis.StageMerge))
			Expect(failure.Group).To(Equal(-1))
			Expect(errors.Is(err, cause)).To(BeTrue())
			Expect(rec.analyzeCalls.Load()).To(Equal(int32(2)))
		})

		It("stops admitting groups when the caller cancels", func() {
			runCtx, cancel := context.WithCancel(ctx)
			release := make(chan struct{})
			var calls atomic.Int32

			analyze := func(_ context.Context, g int) (string, error) {
				calls.Add(1)
				<-release
				return "ok", nil
			}
			merge := func(_ context.Context, partials []string) (string, error) {
				return "merged", nil
			}

			errCh := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := analysis.New(1, analyze, merge).Run(runCtx, seq(3))
				errCh <- err
			}()

			Eventually(calls.Load).Should(Equal(int32(1)))
			cancel()
			close(release)

			var err error
			Eventually(errCh).Should(Receive(&err))
			Expect(err).To(MatchError(analysis.ErrAnalysisFailed))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(calls.Load()).To(Equal(int32(1)))
		})
	})

	It("treats a non-positive concurrency as one", func() {
		var inFlight, peak atomic.Int32
		analyze := func(_ context.Context, g int) (string, error) {
			now := inFlight.Add(1)
			if now > peak.Load() {
				peak.Store(now)
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return "x", nil
		}
		merge := func(_ context.Context, partials []string) (string, error) {
			return "merged", nil
		}

		_, err := analysis.New(0, analyze, merge).Run(ctx, seq(4))

		Expect(err).NotTo(HaveOccurred())
		Expect(peak.Load()).To(Equal(int32(1)))
	})
})
