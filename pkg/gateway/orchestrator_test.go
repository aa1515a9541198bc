package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rhuss/respgw/pkg/api"
	"github.com/rhuss/respgw/pkg/backend"
	"github.com/rhuss/respgw/pkg/observability"
)

type fakeWriter struct {
	events []api.StreamEvent
	resp   *api.Response
}

func (f *fakeWriter) WriteEvent(ctx context.Context, event api.StreamEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeWriter) WriteResponse(ctx context.Context, resp *api.Response) error {
	f.resp = resp
	return nil
}

func (f *fakeWriter) Flush() error { return nil }

func sseBackend(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
}

func basicRequest() *api.CreateResponseRequest {
	return &api.CreateResponseRequest{
		Model: "test-model",
		Input: []api.Item{
			{Type: api.ItemTypeMessage, Message: &api.MessageData{Role: api.RoleUser, Content: []api.ContentPart{{Type: "input_text", Text: "hi"}}}},
		},
		Stream: true,
	}
}

func TestOrchestratorStreamingTextResponse(t *testing.T) {
	sseBody := "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\",\"content\":\"hi\"},\"finish_reason\":null}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\" there\"},\"finish_reason\":\"stop\"}]}\n\n" +
		"data: [DONE]\n\n"
	srv := sseBackend(t, sseBody)
	defer srv.Close()

	client := backend.NewClient(srv.URL, "", 5*time.Second)
	orc := NewOrchestrator(client)

	w := &fakeWriter{}
	req := basicRequest()
	if err := orc.CreateResponse(context.Background(), req, w); err != nil {
		t.Fatalf("CreateResponse returned error: %v", err)
	}

	var sawCompleted bool
	var text string
	for _, e := range w.events {
		if e.Type == api.EventOutputTextDelta {
			text += e.Delta
		}
		if e.Type == api.EventResponseCompleted {
			sawCompleted = true
			if e.Response.Status != api.ResponseStatusCompleted {
				t.Errorf("expected completed status, got %s", e.Response.Status)
			}
		}
	}
	if !sawCompleted {
		t.Fatal("expected a response.completed event")
	}
	if text != "hi there" {
		t.Fatalf("expected accumulated text 'hi there', got %q", text)
	}
}

func TestOrchestratorNonStreamingBuffersIntoSingleResponse(t *testing.T) {
	sseBody := "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\",\"content\":\"ok\"},\"finish_reason\":\"stop\"}]}\n\n" +
		"data: [DONE]\n\n"
	srv := sseBackend(t, sseBody)
	defer srv.Close()

	client := backend.NewClient(srv.URL, "", 5*time.Second)
	orc := NewOrchestrator(client)

	w := &fakeWriter{}
	req := basicRequest()
	req.Stream = false
	if err := orc.CreateResponse(context.Background(), req, w); err != nil {
		t.Fatalf("CreateResponse returned error: %v", err)
	}

	if len(w.events) != 0 {
		t.Fatalf("expected no streaming events for a non-streaming request, got %d", len(w.events))
	}
	if w.resp == nil {
		t.Fatal("expected a buffered response to be written")
	}
	if w.resp.Status != api.ResponseStatusCompleted {
		t.Fatalf("expected completed status, got %s", w.resp.Status)
	}
	if len(w.resp.Output) != 1 || w.resp.Output[0].Message == nil {
		t.Fatalf("expected a single message output item, got %+v", w.resp.Output)
	}
}

func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestOrchestratorRecordsBackendMetrics(t *testing.T) {
	sseBody := "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\",\"content\":\"ok\"},\"finish_reason\":\"stop\"}]}\n\n" +
		"data: [DONE]\n\n"
	srv := sseBackend(t, sseBody)
	defer srv.Close()

	client := backend.NewClient(srv.URL, "", 5*time.Second)
	orc := NewOrchestrator(client)

	req := basicRequest()
	req.Model = "metrics-test-model"
	req.Stream = false
	before := counterValue(t, observability.BackendRequestsTotal, req.Model, "ok")

	if err := orc.CreateResponse(context.Background(), req, &fakeWriter{}); err != nil {
		t.Fatalf("CreateResponse returned error: %v", err)
	}

	after := counterValue(t, observability.BackendRequestsTotal, req.Model, "ok")
	if after != before+1 {
		t.Fatalf("backend requests counter = %v, want %v", after, before+1)
	}
}

func TestOrchestratorRejectsStatefulFields(t *testing.T) {
	client := backend.NewClient("http://unused.invalid", "", time.Second)
	orc := NewOrchestrator(client)

	w := &fakeWriter{}
	req := basicRequest()
	req.PreviousResponseID = "resp_abc"

	err := orc.CreateResponse(context.Background(), req, w)
	if err == nil {
		t.Fatal("expected an error for previous_response_id")
	}
	apiErr, ok := err.(*api.APIError)
	if !ok || apiErr.Code != api.CodeStatefulFieldsNotSupported {
		t.Fatalf("expected stateful_fields_not_supported, got %v", err)
	}
}
