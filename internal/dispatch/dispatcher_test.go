package dispatch_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"eventsim.app/dispatcher/internal/dispatch"
	"eventsim.app/dispatcher/internal/model"
)

type receivedRequest struct {
	at          time.Time
	contentType string
	body        map[string]any
}

type fakeEndpoint struct {
	server *httptest.Server

	mu       sync.Mutex
	received []receivedRequest

	// respond writes the response; defaults to 202 with a JSON body.
	respond func(w http.ResponseWriter, body map[string]any)
}

func newFakeEndpoint() *fakeEndpoint {
	f := &fakeEndpoint{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		f.mu.Lock()
		f.received = append(f.received, receivedRequest{
			at:          time.Now(),
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		})
		respond := f.respond
		f.mu.Unlock()

		if respond != nil {
			respond(w, body)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"success","message":"Event processed"}`))
	}))
	return f
}

func (f *fakeEndpoint) setRespond(fn func(w http.ResponseWriter, body map[string]any)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respond = fn
}

func (f *fakeEndpoint) requests() []receivedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]receivedRequest(nil), f.received...)
}

func task(url, summary, attempt string, delay time.Duration) model.SendTask {
	body, _ := json.Marshal(map[string]any{"summary": summary, "attempt": attempt})
	return model.SendTask{
		Delay:     delay,
		Attempt:   attempt,
		Kind:      model.EventKindIncident,
		TargetURL: url,
		Body:      body,
		Summary:   summary,
	}
}

var _ = Describe("Dispatcher", func() {
	var (
		endpoint   *fakeEndpoint
		dispatcher *dispatch.Dispatcher
		ctx        context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		endpoint = newFakeEndpoint()
		dispatcher = dispatch.New(nil, dispatch.Config{HTTPTimeout: 5 * time.Second}, nil)
	})

	AfterEach(func() {
		endpoint.server.Close()
	})

	It("closes immediately for an empty task list", func() {
		results := dispatcher.Dispatch(ctx, nil)

		Eventually(results).Should(BeClosed())
		Expect(dispatch.Collect(dispatcher.Dispatch(ctx, nil))).To(BeEmpty())
	})

	It("posts JSON and reports status code and body", func() {
		results := dispatch.Collect(dispatcher.Dispatch(ctx, []model.SendTask{
			task(endpoint.server.URL, "A", "initial", 0),
		}))

		Expect(results).To(HaveLen(1))
		Expect(results[0].Failed()).To(BeFalse())
		Expect(*results[0].StatusCode).To(Equal(http.StatusAccepted))
		Expect(results[0].ResponseBody).To(MatchJSON(`{"status":"success","message":"Event processed"}`))
		Expect(results[0].Summary).To(Equal("A"))
		Expect(results[0].Attempt).To(Equal("initial"))
		Expect(results[0].Type).To(Equal(model.EventKindIncident))

		reqs := endpoint.requests()
		Expect(reqs).To(HaveLen(1))
		Expect(reqs[0].contentType).To(Equal("application/json"))
		Expect(reqs[0].body).To(HaveKeyWithValue("summary", "A"))
	})

	It("treats non-2xx responses as settled sends", func() {
		endpoint.setRespond(func(w http.ResponseWriter, _ map[string]any) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("Invalid routing key"))
		})

		results := dispatch.Collect(dispatcher.Dispatch(ctx, []model.SendTask{
			task(endpoint.server.URL, "A", "initial", 0),
		}))

		Expect(results[0].Failed()).To(BeFalse())
		Expect(*results[0].StatusCode).To(Equal(http.StatusBadRequest))
		Expect(results[0].ResponseBody).To(MatchJSON(`"Invalid routing key"`))
		Expect(results[0].Error).To(BeEmpty())
	})

	It("captures transport failures without affecting siblings", func() {
		dead := httptest.NewServer(http.NotFoundHandler())
		deadURL := dead.URL
		dead.Close()

		results := dispatch.Collect(dispatcher.Dispatch(ctx, []model.SendTask{
			task(deadURL, "down", "initial", 0),
			task(endpoint.server.URL, "up", "initial", 0),
		}))

		Expect(results).To(HaveLen(2))
		byName := map[string]model.SendResult{}
		for _, r := range results {
			byName[r.Summary] = r
		}
		Expect(byName["down"].Failed()).To(BeTrue())
		Expect(byName["down"].Error).NotTo(BeEmpty())
		Expect(byName["down"].StatusCode).To(BeNil())
		Expect(byName["up"].Failed()).To(BeFalse())
	})

	It("reports an unusable target url as a failure", func() {
		results := dispatch.Collect(dispatcher.Dispatch(ctx, []model.SendTask{
			task("://bad", "A", "initial", 0),
		}))

		Expect(results).To(HaveLen(1))
		Expect(results[0].Failed()).To(BeTrue())
	})

	It("fires no task before its delay", func() {
		start := time.Now()
		tasks := []model.SendTask{
			task(endpoint.server.URL, "A", "initial", 0),
			task(endpoint.server.URL, "A", "repeat 1", 100*time.Millisecond),
			task(endpoint.server.URL, "A", "repeat 2", 200*time.Millisecond),
		}

		results := dispatch.Collect(dispatcher.Dispatch(ctx, tasks))

		Expect(results).To(HaveLen(3))
		reqs := endpoint.requests()
		Expect(reqs).To(HaveLen(3))
		for _, r := range reqs {
			switch r.body["attempt"] {
			case "repeat 1":
				Expect(r.at.Sub(start)).To(BeNumerically(">=", 100*time.Millisecond))
			case "repeat 2":
				Expect(r.at.Sub(start)).To(BeNumerically(">=", 200*time.Millisecond))
			}
		}
	})

	It("fires tasks independently rather than one after another", func() {
		endpoint.setRespond(func(w http.ResponseWriter, _ map[string]any) {
			time.Sleep(150 * time.Millisecond)
			w.WriteHeader(http.StatusAccepted)
		})
		tasks := make([]model.SendTask, 0, 5)
		for i := 0; i < 5; i++ {
			tasks = append(tasks, task(endpoint.server.URL, "A", "initial", 0))
		}

		start := time.Now()
		results := dispatch.Collect(dispatcher.Dispatch(ctx, tasks))

		Expect(results).To(HaveLen(5))
		Expect(time.Since(start)).To(BeNumerically("<", 600*time.Millisecond))
	})

	It("yields results in completion order, not submission order", func() {
		endpoint.setRespond(func(w http.ResponseWriter, body map[string]any) {
			if body["summary"] == "slow" {
				time.Sleep(300 * time.Millisecond)
			}
			w.WriteHeader(http.StatusAccepted)
		})

		results := dispatch.Collect(dispatcher.Dispatch(ctx, []model.SendTask{
			task(endpoint.server.URL, "slow", "initial", 0),
			task(endpoint.server.URL, "fast", "initial", 50*time.Millisecond),
		}))

		Expect(results).To(HaveLen(2))
		Expect(results[0].Summary).To(Equal("fast"))
		Expect(results[1].Summary).To(Equal("slow"))
	})

	It("keeps sending after the caller's context is cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		results := dispatcher.Dispatch(cctx, []model.SendTask{
			task(endpoint.server.URL, "A", "initial", 50*time.Millisecond),
		})
		cancel()

		collected := dispatch.Collect(results)

		Expect(collected).To(HaveLen(1))
		Expect(collected[0].Failed()).To(BeFalse())
		Expect(endpoint.requests()).To(HaveLen(1))
	})

	It("paces sends when a rate is configured", func() {
		paced := dispatch.New(nil, dispatch.Config{HTTPTimeout: 5 * time.Second, RatePerSec: 2}, nil)
		tasks := []model.SendTask{
			task(endpoint.server.URL, "A", "initial", 0),
			task(endpoint.server.URL, "A", "repeat 1", 0),
			task(endpoint.server.URL, "A", "repeat 2", 0),
		}

		start := time.Now()
		results := dispatch.Collect(paced.Dispatch(ctx, tasks))

		Expect(results).To(HaveLen(3))
		Expect(time.Since(start)).To(BeNumerically(">=", 400*time.Millisecond))
	})

	It("uses the provided http client", func() {
		client := &http.Client{Timeout: 50 * time.Millisecond}
		custom := dispatch.New(client, dispatch.Config{}, nil)
		endpoint.setRespond(func(w http.ResponseWriter, _ map[string]any) {
			time.Sleep(300 * time.Millisecond)
			w.WriteHeader(http.StatusAccepted)
		})

		results := dispatch.Collect(custom.Dispatch(ctx, []model.SendTask{
			task(endpoint.server.URL, "A", "initial", 0),
		}))

		Expect(results[0].Failed()).To(BeTrue())
		Expect(results[0].Error).To(ContainSubstring("Client.Timeout"))
	})
})
