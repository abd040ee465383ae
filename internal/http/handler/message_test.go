package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"autoreply.app/relay/internal/http/handler"
	"autoreply.app/relay/internal/model"
	"autoreply.app/relay/internal/service"
)

var _ = Describe("MessageHandler", func() {
	var (
		router *gin.Engine
		svc    *mockIngestService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockIngestService{}
		h := handler.NewMessageHandler(svc, "X-Trace-ID")
		router.POST("/messages", h.Ingest)
	})

	post := func(body any, headers map[string]string) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBuffer(raw))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("returns 202 with the conversation key", func() {
		var got service.MessageIngestParams
		svc.ingestFn = func(_ context.Context, params service.MessageIngestParams) (*service.MessageIngestResult, error) {
			got = params
			return &service.MessageIngestResult{
				EventID:  *params.EventID,
				Key:      model.ConversationKey{ChannelID: params.ChannelID, CounterpartyID: params.CounterpartyID},
				Enqueued: true,
			}, nil
		}

		w := post(map[string]string{
			"event_id":        "wamid.1",
			"channel_id":      "chan-1",
			"counterparty_id": "628111",
			"text":            "halo kak",
		}, map[string]string{"X-Trace-ID": "trace-abc"})

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(got.TraceID).NotTo(BeNil())
		Expect(*got.TraceID).To(Equal("trace-abc"))

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["conversation_key"]).To(Equal("chan-1_628111"))
		Expect(resp["enqueued"]).To(BeTrue())
		Expect(resp["duplicated"]).To(BeFalse())
	})

	It("leaves the trace id unset without a header or span", func() {
		var got service.MessageIngestParams
		svc.ingestFn = func(_ context.Context, params service.MessageIngestParams) (*service.MessageIngestResult, error) {
			got = params
			return &service.MessageIngestResult{EventID: "minted"}, nil
		}

		w := post(map[string]string{"channel_id": "c", "counterparty_id": "p", "text": "hi"}, nil)

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(got.TraceID).To(BeNil())
		Expect(got.EventID).To(BeNil())
	})

	It("returns 400 when required fields are missing", func() {
		called := false
		svc.ingestFn = func(context.Context, service.MessageIngestParams) (*service.MessageIngestResult, error) {
			called = true
			return nil, nil
		}

		w := post(map[string]string{"channel_id": "c"}, nil)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(called).To(BeFalse())
	})

	It("maps ErrInvalidMessage to 400", func() {
		svc.ingestFn = func(context.Context, service.MessageIngestParams) (*service.MessageIngestResult, error) {
			return nil, service.ErrInvalidMessage
		}

		w := post(map[string]string{"channel_id": "c", "counterparty_id": "p", "text": "hi"}, nil)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 500 when the service fails", func() {
		svc.ingestFn = func(context.Context, service.MessageIngestParams) (*service.MessageIngestResult, error) {
			return nil, errors.New("redis down")
		}

		w := post(map[string]string{"channel_id": "c", "counterparty_id": "p", "text": "hi"}, nil)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).NotTo(ContainSubstring("redis down"))
	})
})
