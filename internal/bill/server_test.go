package bill

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/bellwood/bill-analyst/internal/extraction"
)

var _ = Describe("Server", func() {
	var (
		extractor   *mockExtractor
		assistant   *mockAssistant
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
		client      *http.Client
	)

	// allow registers the server for n upcoming requests
	allow := func(n int) {
		for i := 0; i < n; i++ {
			ghttpServer.AppendHandlers(server.ServeHTTP)
		}
	}

	uploadRequest := func(uploadID string) *http.Request {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "bill.png")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("fake image data"))
		Expect(err).NotTo(HaveOccurred())
		if uploadID != "" {
			Expect(writer.WriteField("upload_id", uploadID)).To(Succeed())
		}
		Expect(writer.Close()).To(Succeed())

		req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/extract", body)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req
	}

	BeforeEach(func() {
		extractor = newMockExtractor()
		assistant = newMockAssistant()
		service = NewService(extractor, assistant, NewSessionStore())
		auth = BasicAuth{}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()

		// The session rides on a cookie, so the test client needs a jar
		jar, err := cookiejar.New(nil)
		Expect(err).NotTo(HaveOccurred())
		client = &http.Client{Jar: jar}
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleIndex", func() {
		It("should return HTML containing Bill Analyst", func() {
			allow(1)
			resp, err := client.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Bill Analyst"))
		})

		It("should issue a session cookie", func() {
			allow(1)
			resp, err := client.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			cookies := resp.Cookies()
			Expect(cookies).NotTo(BeEmpty())
			Expect(cookies[0].Name).To(Equal(sessionCookieName))
		})
	})

	Describe("handleExtract", func() {
		When("extraction succeeds", func() {
			It("should return the extracted record", func() {
				allow(1)
				resp, err := client.Do(uploadRequest("upload-1"))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var record extraction.BillRecord
				Expect(json.NewDecoder(resp.Body).Decode(&record)).To(Succeed())
				Expect(record.SellerName).To(Equal("Acme Co"))
				Expect(record.GrandTotal).To(Equal(42.50))
				Expect(record.Items).To(HaveLen(1))
				Expect(record.Items[0].Quantity).To(Equal(2))
			})

			It("should make the record available on /api/bill", func() {
				allow(2)
				resp, err := client.Do(uploadRequest("upload-1"))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()

				resp, err = client.Get(ghttpServer.URL() + "/api/bill")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var record extraction.BillRecord
				Expect(json.NewDecoder(resp.Body).Decode(&record)).To(Succeed())
				Expect(record.InvoiceNumber).To(Equal("INV-001"))
			})

			It("should append a success message to the transcript", func() {
				allow(2)
				resp, err := client.Do(uploadRequest("upload-1"))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()

				resp, err = client.Get(ghttpServer.URL() + "/api/chat")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				var messages []Message
				Expect(json.NewDecoder(resp.Body).Decode(&messages)).To(Succeed())
				Expect(messages).To(HaveLen(2))
				Expect(messages[1].Content).To(ContainSubstring("Acme Co"))
			})
		})

		When("extraction fails", func() {
			BeforeEach(func() {
				extractor.err = &extraction.ExtractionError{Message: "no JSON object found in model response"}
			})

			It("should return an error status with the message", func() {
				allow(1)
				resp, err := client.Do(uploadRequest("upload-1"))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

				var body map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				Expect(body["error"]).To(ContainSubstring("no JSON object found"))
			})

			It("should leave the session without a bill", func() {
				allow(2)
				resp, err := client.Do(uploadRequest("upload-1"))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()

				resp, err = client.Get(ghttpServer.URL() + "/api/bill")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})

		When("no file is provided", func() {
			It("should return Bad Request", func() {
				allow(1)
				body := &bytes.Buffer{}
				writer := multipart.NewWriter(body)
				Expect(writer.Close()).To(Succeed())

				req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/extract", body)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Content-Type", writer.FormDataContentType())

				resp, err := client.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleExportJSON", func() {
		When("a bill is present", func() {
			It("should serve a JSON artifact named after the invoice number", func() {
				allow(2)
				resp, err := client.Do(uploadRequest("upload-1"))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()

				resp, err = client.Get(ghttpServer.URL() + "/api/bill/export")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
				Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("INV-001_bill_data.json"))

				var record extraction.BillRecord
				Expect(json.NewDecoder(resp.Body).Decode(&record)).To(Succeed())
				Expect(&record).To(Equal(extractor.record))
			})
		})

		When("no bill is present", func() {
			It("should return Not Found", func() {
				allow(1)
				resp, err := client.Get(ghttpServer.URL() + "/api/bill/export")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("handleChat", func() {
		postChat := func(message string) *http.Response {
			payload, err := json.Marshal(map[string]string{"message": message})
			Expect(err).NotTo(HaveOccurred())
			resp, err := client.Post(ghttpServer.URL()+"/api/chat", "application/json", bytes.NewReader(payload))
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		When("a message is submitted", func() {
			It("should append one user and one assistant message", func() {
				allow(1)
				resp := postChat("Say hello")
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var body struct {
					Reply      Message   `json:"reply"`
					Transcript []Message `json:"transcript"`
				}
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				Expect(body.Reply.Content).NotTo(BeEmpty())
				Expect(body.Transcript).To(HaveLen(3)) // greeting + user + assistant
				Expect(body.Transcript[1].Role).To(Equal(RoleUser))
				Expect(body.Transcript[2].Role).To(Equal(RoleAssistant))
			})
		})

		When("the assistant fails", func() {
			BeforeEach(func() {
				assistant.err = errors.New("transport error")
			})

			It("should still return OK with the error as the reply", func() {
				allow(1)
				resp := postChat("Say hello")
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var body struct {
					Reply Message `json:"reply"`
				}
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				Expect(body.Reply.Content).To(ContainSubstring("An error occurred"))
			})
		})

		When("the message is empty", func() {
			It("should return Bad Request", func() {
				allow(1)
				resp := postChat("   ")
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "secret"}
			server = NewServerWithMux(service, auth, http.NewServeMux())
		})

		When("credentials are missing", func() {
			It("should return Unauthorized", func() {
				allow(1)
				resp, err := client.Get(ghttpServer.URL() + "/")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			})
		})

		When("credentials are correct", func() {
			It("should serve the page", func() {
				allow(1)
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/", nil)
				Expect(err).NotTo(HaveOccurred())
				req.SetBasicAuth("user", "secret")

				resp, err := client.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})
		})
	})
})
