package llm_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"autoreply.app/relay/common/llm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/time/rate"
)

type stubGenerator struct {
	generateFn func(ctx context.Context, req llm.GenerateRequest) (string, error)
	calls      int
}

func (s *stubGenerator) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	s.calls++
	if s.generateFn != nil {
		return s.generateFn(ctx, req)
	}
	return "", errors.New("stub not configured")
}

var _ = Describe("NewGenerator", func() {
	It("requires an API key", func() {
		gen, err := llm.NewGenerator(llm.Config{Provider: llm.ProviderOpenAI})
		Expect(err).To(HaveOccurred())
		Expect(gen).To(BeNil())
	})

	It("rejects unknown providers", func() {
		_, err := llm.NewGenerator(llm.Config{Provider: "cohere", APIKey: "k"})
		Expect(err).To(MatchError(ContainSubstring("unsupported LLM provider")))
	})

	It("builds openai and anthropic generators", func() {
		for _, provider := range []string{"", llm.ProviderOpenAI, llm.ProviderAnthropic} {
			gen, err := llm.NewGenerator(llm.Config{Provider: provider, APIKey: "k"})
			Expect(err).NotTo(HaveOccurred())
			Expect(gen).NotTo(BeNil())
		}
	})
})

var _ = Describe("BoundedGenerator", func() {
	var (
		ctx  context.Context
		stub *stubGenerator
	)

	BeforeEach(func() {
		ctx = context.Background()
		stub = &stubGenerator{}
	})

	It("passes the request through unchanged", func() {
		var seen llm.GenerateRequest
		stub.generateFn = func(_ context.Context, req llm.GenerateRequest) (string, error) {
			seen = req
			return "hello", nil
		}

		gen := llm.NewBoundedGenerator(stub, nil, 0)
		out, err := gen.Generate(ctx, llm.GenerateRequest{
			SystemPrompt: "sys",
			UserPrompt:   "hi",
			Model:        "gpt-4o",
			Temperature:  llm.Temp(0.3),
			MaxTokens:    120,
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("hello"))
		Expect(seen.Model).To(Equal("gpt-4o"))
		Expect(*seen.Temperature).To(Equal(0.3))
		Expect(seen.MaxTokens).To(Equal(120))
	})

	It("bounds each call with the configured timeout", func() {
		stub.generateFn = func(ctx context.Context, _ llm.GenerateRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}

		gen := llm.NewBoundedGenerator(stub, nil, 20*time.Millisecond)
		_, err := gen.Generate(ctx, llm.GenerateRequest{})

		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
	})

	It("fails without calling the provider when the limiter cannot admit in time", func() {
		limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
		Expect(limiter.Allow()).To(BeTrue())

		gen := llm.NewBoundedGenerator(stub, limiter, 20*time.Millisecond)
		_, err := gen.Generate(ctx, llm.GenerateRequest{})

		Expect(err).To(HaveOccurred())
		Expect(stub.calls).To(Equal(0))
	})
})

var _ = Describe("IsRetryable", func() {
	It("treats cancellation as final", func() {
		Expect(llm.IsRetryable(context.Background(), context.Canceled)).To(BeFalse())
		Expect(llm.IsRetryable(context.Background(), context.DeadlineExceeded)).To(BeFalse())
	})

	It("retries network errors", func() {
		Expect(llm.IsRetryable(context.Background(), errors.New("connection reset"))).To(BeTrue())
	})

	It("ignores nil", func() {
		Expect(llm.IsRetryable(context.Background(), nil)).To(BeFalse())
	})
})

var _ = Describe("Anthropic generator", func() {
	var (
		srv       *httptest.Server
		sentModel string
		logs      *bytes.Buffer
	)

	BeforeEach(func() {
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Model string `json:"model"`
			}
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			sentModel = body.Model
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"` + body.Model +
				`","content":[{"type":"text","text":"Halo!"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`))
		}))
		DeferCleanup(srv.Close)

		logs = &bytes.Buffer{}
		prev := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelWarn})))
		DeferCleanup(func() { slog.SetDefault(prev) })
	})

	newGen := func() llm.Generator {
		gen, err := llm.NewGenerator(llm.Config{
			Provider: llm.ProviderAnthropic,
			APIKey:   "k",
			BaseURL:  srv.URL,
			Model:    "claude-haiku-4-5",
		})
		Expect(err).NotTo(HaveOccurred())
		return gen
	}

	It("logs when a non-claude model is swapped for the configured one", func() {
		out, err := newGen().Generate(context.Background(), llm.GenerateRequest{UserPrompt: "hi", Model: "gpt-4o"})

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("Halo!"))
		Expect(sentModel).To(Equal("claude-haiku-4-5"))
		Expect(logs.String()).To(ContainSubstring("requested_model=gpt-4o"))
		Expect(logs.String()).To(ContainSubstring("model=claude-haiku-4-5"))
	})

	It("uses a requested claude model without a warning", func() {
		_, err := newGen().Generate(context.Background(), llm.GenerateRequest{UserPrompt: "hi", Model: "claude-sonnet-4-5"})

		Expect(err).NotTo(HaveOccurred())
		Expect(sentModel).To(Equal("claude-sonnet-4-5"))
		Expect(logs.String()).To(BeEmpty())
	})
})
