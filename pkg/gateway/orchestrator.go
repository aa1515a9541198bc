package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/respgw/pkg/api"
	"github.com/rhuss/respgw/pkg/backend"
	"github.com/rhuss/respgw/pkg/breaker"
	"github.com/rhuss/respgw/pkg/catalog"
	"github.com/rhuss/respgw/pkg/observability"
	"github.com/rhuss/respgw/pkg/transport"
)

// Orchestrator is the stateless transport.ResponseCreator implementation
// for this gateway: validate, consult the model catalog, run the backend
// call through the circuit breaker, and drive the result — streaming or
// buffered — back through the ResponseWriter. There is no ResponseStore:
// every request is self-contained, nothing is persisted between calls.
type Orchestrator struct {
	client          *backend.Client
	breaker         *breaker.Breaker // nil disables breaker consultation
	catalog         *catalog.Catalog // nil disables model-catalog validation
	validation      api.ValidationConfig
	channelCapacity int // bounded channel between the upstream reader and the writer goroutine
}

var _ transport.ResponseCreator = (*Orchestrator)(nil)

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithBreaker attaches a circuit breaker consulted before every backend call.
func WithBreaker(b *breaker.Breaker) Option {
	return func(o *Orchestrator) { o.breaker = b }
}

// WithCatalog attaches a model catalog consulted to reject unknown models
// before a request is sent to the backend. A catalog that has never
// completed a refresh (Known() == false) is treated as advisory-only and
// skipped, so a slow or failing backend /v1/models endpoint never blocks
// every request.
func WithCatalog(c *catalog.Catalog) Option {
	return func(o *Orchestrator) { o.catalog = c }
}

// WithValidationConfig overrides the default request validation limits.
func WithValidationConfig(cfg api.ValidationConfig) Option {
	return func(o *Orchestrator) { o.validation = cfg }
}

// WithChannelCapacity sets the bounded channel size for the backend's SSE
// relay channel (backend.Client.ChannelCapacity) — the buffer between the
// goroutine reading the upstream SSE body and whatever drains it here.
// Defaults to 64.
func WithChannelCapacity(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.channelCapacity = n
		}
	}
}

// NewOrchestrator builds an Orchestrator around a backend client.
func NewOrchestrator(client *backend.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:          client,
		validation:      api.DefaultValidationConfig(),
		channelCapacity: 64,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client != nil {
		o.client.ChannelCapacity = o.channelCapacity
	}
	return o
}

// CreateResponse implements transport.ResponseCreator.
func (o *Orchestrator) CreateResponse(ctx context.Context, req *api.CreateResponseRequest, w transport.ResponseWriter) error {
	if apiErr := api.ValidateRequest(req, o.validation); apiErr != nil {
		return apiErr
	}

	supportsFunctionCalling := true
	if o.catalog != nil && o.catalog.Known() {
		info, ok := o.catalog.Lookup(req.Model)
		if !ok {
			return api.NewModelError(fmt.Sprintf("unknown model %q", req.Model))
		}
		// Normalize onto the catalog's canonical id so the backend request,
		// the response skeleton, and metrics all see the same spelling the
		// client's case-insensitive match resolved to.
		req.Model = info.ID
		supportsFunctionCalling = o.catalog.Supports(req.Model, "function_calling")
	}

	backendReq := FlattenRequest(req, supportsFunctionCalling)

	var eventCh <-chan backend.Event
	call := func(callCtx context.Context) error {
		ch, err := o.client.Stream(callCtx, backendReq)
		if err != nil {
			return err
		}
		eventCh = ch
		return nil
	}

	start := time.Now()
	var callErr error
	if o.breaker != nil {
		callErr = o.breaker.Execute(ctx, IsBreakerFailure, call)
	} else {
		callErr = call(ctx)
	}
	if callErr != nil {
		observability.BackendRequestsTotal.WithLabelValues(req.Model, "error").Inc()
		observability.BackendLatency.WithLabelValues(req.Model).Observe(time.Since(start).Seconds())
		return translateBackendErr(callErr)
	}

	if req.Stream {
		return o.streamResponse(ctx, req, eventCh, w, start)
	}
	return o.bufferedResponse(ctx, req, eventCh, w, start)
}

// recordBackendCompletion emits the backend request/latency/token metrics
// once a call has run to a terminal event (done or error), so BackendLatency
// reflects the full round trip rather than just the time to receive headers.
func recordBackendCompletion(model string, start time.Time, usage *api.Usage, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	observability.BackendRequestsTotal.WithLabelValues(model, status).Inc()
	observability.BackendLatency.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if usage != nil {
		observability.BackendTokensTotal.WithLabelValues(model, "input").Add(float64(usage.InputTokens))
		observability.BackendTokensTotal.WithLabelValues(model, "output").Add(float64(usage.OutputTokens))
	}
}

// streamResponse drains eventCh through a Translator, writing every
// resulting api.StreamEvent to w as it's produced. eventCh is itself a
// bounded channel (backend.Client.Stream, sized by ChannelCapacity) so the
// backpressure this gateway's concurrency model calls for already exists
// one layer down — there is no need for a second relay channel here.
func (o *Orchestrator) streamResponse(ctx context.Context, req *api.CreateResponseRequest, eventCh <-chan backend.Event, w transport.ResponseWriter, start time.Time) error {
	resp := o.newResponseSkeleton(req)
	tr := NewTranslator(resp.ID)

	if err := w.WriteEvent(ctx, api.StreamEvent{Type: api.EventResponseCreated, SequenceNumber: tr.nextSeq(), Response: snapshotResponse(resp)}); err != nil {
		return err
	}
	if err := w.WriteEvent(ctx, api.StreamEvent{Type: api.EventResponseInProgress, SequenceNumber: tr.nextSeq(), Response: snapshotResponse(resp)}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(context.Cause(ctx), transport.ErrShuttingDown) {
				return emitFailed(context.Background(), resp, tr, api.NewServerShuttingDownError(), w)
			}
			return emitCancelled(resp, tr, w)

		case ev, ok := <-eventCh:
			if !ok {
				// Channel closed without a terminal event — treat as a
				// truncated upstream stream rather than a clean finish.
				recordBackendCompletion(req.Model, start, nil, true)
				return emitFailed(ctx, resp, tr, api.NewUpstreamTruncatedError("backend stream closed without a finish_reason"), w)
			}

			switch ev.Type {
			case backend.EventError:
				recordBackendCompletion(req.Model, start, nil, true)
				return emitFailed(ctx, resp, tr, ev.Err, w)

			case backend.EventDone:
				for _, se := range tr.Finish(ev.FinishReason) {
					if err := w.WriteEvent(ctx, se); err != nil {
						return err
					}
				}
				resp.Output = tr.Items()
				resp.Status = backend.MapFinishReasonToResponseStatus(ev.FinishReason)
				if ev.Usage != nil {
					resp.Usage = ev.Usage
				}
				recordBackendCompletion(req.Model, start, ev.Usage, false)
				return w.WriteEvent(ctx, api.StreamEvent{Type: api.EventResponseCompleted, SequenceNumber: tr.nextSeq(), Response: resp})

			default:
				for _, se := range tr.HandleEvent(ev) {
					if err := w.WriteEvent(ctx, se); err != nil {
						return err
					}
				}
			}
		}
	}
}

func (o *Orchestrator) newResponseSkeleton(req *api.CreateResponseRequest) *api.Response {
	return &api.Response{
		ID:          api.NewResponseID(),
		Object:      "response",
		Status:      api.ResponseStatusInProgress,
		Output:      []api.Item{},
		Model:       req.Model,
		CreatedAt:   time.Now().Unix(),
		Tools:       ensureTools(req.Tools),
		ToolChoice:  toolChoiceValue(req.ToolChoice),
		Truncation:  getTruncation(req),
		Store:       false,
		Text:        &api.TextConfig{Format: &api.TextFormat{Type: "text"}},
		ServiceTier: getServiceTier(req),
		Metadata:    make(map[string]any),
		Temperature: derefFloat64(req.Temperature),
		TopP:        derefFloat64(req.TopP),
		MaxOutputTokens: req.MaxOutputTokens,
	}
}

func emitFailed(ctx context.Context, resp *api.Response, tr *Translator, streamErr error, w transport.ResponseWriter) error {
	resp.Status = api.ResponseStatusFailed
	resp.Error = translateBackendErr(streamErr)
	return w.WriteEvent(ctx, api.StreamEvent{Type: api.EventResponseFailed, SequenceNumber: tr.nextSeq(), Response: resp})
}

// emitCancelled uses a background context since the original request
// context is already cancelled by the time this runs.
func emitCancelled(resp *api.Response, tr *Translator, w transport.ResponseWriter) error {
	resp.Status = api.ResponseStatusCancelled
	return w.WriteEvent(context.Background(), api.StreamEvent{Type: api.EventResponseCancelled, SequenceNumber: tr.nextSeq(), Response: resp})
}

// bufferedResponse drains the backend stream internally (the backend leg
// always streams; see FlattenRequest) and writes a single completed
// api.Response once the stream ends.
func (o *Orchestrator) bufferedResponse(ctx context.Context, req *api.CreateResponseRequest, eventCh <-chan backend.Event, w transport.ResponseWriter, start time.Time) error {
	resp := o.newResponseSkeleton(req)
	tr := NewTranslator(resp.ID)

	for ev := range eventCh {
		if ctx.Err() != nil {
			if errors.Is(context.Cause(ctx), transport.ErrShuttingDown) {
				return api.NewServerShuttingDownError()
			}
			return ctx.Err()
		}
		if ev.Type == backend.EventError {
			recordBackendCompletion(req.Model, start, nil, true)
			return translateBackendErr(ev.Err)
		}
		if ev.Type == backend.EventDone {
			tr.Finish(ev.FinishReason)
			resp.Output = tr.Items()
			resp.Status = backend.MapFinishReasonToResponseStatus(ev.FinishReason)
			if ev.Usage != nil {
				resp.Usage = ev.Usage
			}
			recordBackendCompletion(req.Model, start, ev.Usage, false)
			return w.WriteResponse(ctx, resp)
		}
		tr.HandleEvent(ev)
	}

	slog.Warn("backend stream closed without a terminal event", "model", req.Model)
	recordBackendCompletion(req.Model, start, nil, true)
	tr.Finish("stop")
	resp.Output = tr.Items()
	resp.Status = api.ResponseStatusCompleted
	return w.WriteResponse(ctx, resp)
}

// snapshotResponse creates a shallow copy so mutations after an event is
// written don't retroactively change the payload already sent.
func snapshotResponse(r *api.Response) *api.Response {
	cp := *r
	cp.Output = make([]api.Item, len(r.Output))
	copy(cp.Output, r.Output)
	return &cp
}

func getTruncation(req *api.CreateResponseRequest) string {
	if req.Truncation != "" {
		return req.Truncation
	}
	return "disabled"
}

func getServiceTier(req *api.CreateResponseRequest) string {
	if req.ServiceTier != "" {
		return req.ServiceTier
	}
	return "default"
}

func derefFloat64(p *float64) float64 {
	if p == nil {
		return 0.0
	}
	return *p
}

func toolChoiceValue(tc *api.ToolChoice) any {
	if tc == nil {
		return "auto"
	}
	if tc.String != "" {
		return tc.String
	}
	if tc.Function != nil {
		return tc.Function
	}
	return "auto"
}

func ensureTools(tools []api.ToolDefinition) []api.ToolDefinition {
	if tools == nil {
		return []api.ToolDefinition{}
	}
	return tools
}
