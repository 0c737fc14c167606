package paymentgateway_test

import (
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/moviemix/internal"
	"github.com/frahmantamala/moviemix/internal/paymentgateway"
)

var _ = Describe("SignatureVerifier", func() {
	var (
		verifier *paymentgateway.SignatureVerifier
		body     []byte
	)

	BeforeEach(func() {
		verifier = paymentgateway.NewSignatureVerifier("client-secret", 5*time.Minute)
		body = []byte(`{"data":{"order":{"order_id":"order_101"},"payment":{"payment_status":"SUCCESS"}},"type":"PAYMENT_SUCCESS_WEBHOOK"}`)
	})

	It("accepts a signature computed over timestamp and body", func() {
		ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
		sig := verifier.Sign(ts, body)
		Expect(verifier.Verify(ts, sig, body)).To(Succeed())
	})

	It("rejects a tampered body", func() {
		ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
		sig := verifier.Sign(ts, body)
		err := verifier.Verify(ts, sig, append(body, ' '))
		Expect(internal.HasCode(err, internal.ErrCodeInvalidSignature)).To(BeTrue())
	})

	It("rejects a stale timestamp", func() {
		ts := strconv.FormatInt(time.Now().Add(-time.Hour).UnixMilli(), 10)
		sig := verifier.Sign(ts, body)
		err := verifier.Verify(ts, sig, body)
		Expect(internal.HasCode(err, internal.ErrCodeInvalidSignature)).To(BeTrue())
	})

	It("rejects missing headers", func() {
		Expect(verifier.Verify("", "", body)).To(MatchError(internal.ErrInvalidSignature))
	})
})

var _ = Describe("ParseWebhookEvent", func() {
	It("extracts order id and payment status", func() {
		evt, err := paymentgateway.ParseWebhookEvent([]byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":"order_101","order_amount":5},"payment":{"cf_payment_id":12345,"payment_status":"SUCCESS"}}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(evt.OrderID()).To(Equal("order_101"))
		Expect(evt.PaymentStatus()).To(Equal("SUCCESS"))
		Expect(evt.PaymentRef()).To(Equal("12345"))
	})

	It("requires an order id", func() {
		_, err := paymentgateway.ParseWebhookEvent([]byte(`{"data":{}}`))
		Expect(internal.HasCode(err, internal.ErrCodeValidationFailed)).To(BeTrue())
	})
})
