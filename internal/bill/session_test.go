package bill

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SessionStore", func() {
	var store *SessionStore

	BeforeEach(func() {
		store = NewSessionStore()
	})

	Describe("GetOrInit", func() {
		When("no identifier is supplied", func() {
			It("creates a session with a fresh identifier", func() {
				sess, created := store.GetOrInit("")
				Expect(created).To(BeTrue())
				Expect(sess.ID()).NotTo(BeEmpty())
			})

			It("seeds the transcript with the assistant greeting", func() {
				sess, _ := store.GetOrInit("")
				messages := sess.Messages()
				Expect(messages).To(HaveLen(1))
				Expect(messages[0].Role).To(Equal(RoleAssistant))
				Expect(messages[0].Content).To(ContainSubstring("upload a bill image"))
			})

			It("starts with no bill and no upload identifier", func() {
				sess, _ := store.GetOrInit("")
				Expect(sess.Bill()).To(BeNil())
				Expect(sess.UploadID()).To(BeEmpty())
			})
		})

		When("a known identifier is supplied", func() {
			It("returns the same session exactly once initialized", func() {
				first, _ := store.GetOrInit("")
				first.Append(RoleUser, "hello")

				second, created := store.GetOrInit(first.ID())
				Expect(created).To(BeFalse())
				Expect(second).To(BeIdenticalTo(first))
				Expect(second.Messages()).To(HaveLen(2))
			})
		})

		When("an unknown identifier is supplied", func() {
			It("creates a fresh session under a new identifier", func() {
				sess, created := store.GetOrInit("stale-cookie-value")
				Expect(created).To(BeTrue())
				Expect(sess.ID()).NotTo(Equal("stale-cookie-value"))
			})
		})

		When("sessions are created for different users", func() {
			It("keeps their state isolated", func() {
				first, _ := store.GetOrInit("")
				second, _ := store.GetOrInit("")
				first.ReplaceBill(sampleRecord(), "upload-1")

				Expect(second.Bill()).To(BeNil())
				Expect(store.Len()).To(Equal(2))
			})
		})

		When("a session has been idle past the TTL", func() {
			BeforeEach(func() {
				store = NewSessionStoreWithTTL(time.Nanosecond)
			})

			It("is pruned and replaced on next access", func() {
				old, _ := store.GetOrInit("")
				time.Sleep(time.Millisecond)

				replacement, created := store.GetOrInit(old.ID())
				Expect(created).To(BeTrue())
				Expect(replacement.ID()).NotTo(Equal(old.ID()))
				Expect(store.Len()).To(Equal(1))
			})
		})
	})
})

var _ = Describe("Session", func() {
	var sess *Session

	BeforeEach(func() {
		sess, _ = NewSessionStore().GetOrInit("")
	})

	Describe("ReplaceBill", func() {
		It("stores the record and its upload identifier", func() {
			record := sampleRecord()
			sess.ReplaceBill(record, "upload-1")
			Expect(sess.Bill()).To(Equal(record))
			Expect(sess.UploadID()).To(Equal("upload-1"))
		})
	})

	Describe("ClearBill", func() {
		It("removes the record and the upload identifier", func() {
			sess.ReplaceBill(sampleRecord(), "upload-1")
			sess.ClearBill()
			Expect(sess.Bill()).To(BeNil())
			Expect(sess.UploadID()).To(BeEmpty())
		})

		It("leaves the transcript intact", func() {
			sess.Append(RoleUser, "hello")
			sess.ClearBill()
			Expect(sess.Messages()).To(HaveLen(2))
		})
	})

	Describe("Messages", func() {
		It("returns a copy that does not alias the transcript", func() {
			messages := sess.Messages()
			messages[0].Content = "tampered"
			Expect(sess.Messages()[0].Content).NotTo(Equal("tampered"))
		})

		It("is append-only through Append", func() {
			sess.Append(RoleUser, "first")
			sess.Append(RoleAssistant, "second")
			messages := sess.Messages()
			Expect(messages[1].Content).To(Equal("first"))
			Expect(messages[2].Content).To(Equal("second"))
		})
	})
})
