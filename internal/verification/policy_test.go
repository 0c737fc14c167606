package verification_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/moviemix/internal"
	"github.com/frahmantamala/moviemix/internal/verification"
)

var _ = Describe("Policy", func() {
	It("defaults to six attempts five seconds apart", func() {
		p := verification.DefaultPolicy()

		Expect(p.Validate()).To(Succeed())
		Expect(p.Schedule()).To(Equal([]time.Duration{
			5 * time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second,
		}))
	})

	It("never waits after the last attempt", func() {
		p := verification.Policy{MaxAttempts: 1, Delay: time.Second, Backoff: verification.BackoffConstant}

		Expect(p.Schedule()).To(BeEmpty())
	})

	It("grows exponentially and honours the cap", func() {
		p := verification.Policy{
			MaxAttempts: 5,
			Delay:       time.Second,
			Backoff:     verification.BackoffExponential,
			MaxDelay:    5 * time.Second,
		}

		Expect(p.Schedule()).To(Equal([]time.Duration{
			time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second,
		}))
	})

	It("follows the fibonacci sequence", func() {
		p := verification.Policy{MaxAttempts: 5, Delay: time.Second, Backoff: verification.BackoffFibonacci}

		Expect(p.Schedule()).To(Equal([]time.Duration{
			time.Second, 2 * time.Second, 3 * time.Second, 5 * time.Second,
		}))
	})

	DescribeTable("rejects invalid policies",
		func(p verification.Policy) {
			Expect(p.Validate()).To(HaveOccurred())
		},
		Entry("zero attempts", verification.Policy{MaxAttempts: 0, Delay: time.Second, Backoff: verification.BackoffConstant}),
		Entry("zero delay", verification.Policy{MaxAttempts: 3, Backoff: verification.BackoffConstant}),
		Entry("unknown backoff", verification.Policy{MaxAttempts: 3, Delay: time.Second, Backoff: "linear"}),
		Entry("cap below delay", verification.Policy{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: verification.BackoffConstant, MaxDelay: time.Second}),
		Entry("negative attempt timeout", verification.Policy{MaxAttempts: 3, Delay: time.Second, Backoff: verification.BackoffConstant, AttemptTimeout: -time.Second}),
	)

	It("keeps the default budget under a minute", func() {
		p := verification.DefaultPolicy()

		Expect(p.AttemptTimeout).To(Equal(5 * time.Second))
		Expect(p.Budget()).To(Equal(55 * time.Second))
		Expect(p.Budget()).To(BeNumerically("<", time.Minute))
	})

	It("reports no budget when attempts are unbounded", func() {
		p := verification.Policy{MaxAttempts: 3, Delay: time.Second, Backoff: verification.BackoffConstant}

		Expect(p.Budget()).To(BeZero())
	})

	It("builds from configuration with a constant default", func() {
		p := verification.PolicyFromConfig(internal.VerificationConfig{MaxAttempts: 3, Delay: 2 * time.Second, AttemptTimeout: time.Second})

		Expect(p.Backoff).To(Equal(verification.BackoffConstant))
		Expect(p.AttemptTimeout).To(Equal(time.Second))
		Expect(p.Schedule()).To(Equal([]time.Duration{2 * time.Second, 2 * time.Second}))
	})
})
