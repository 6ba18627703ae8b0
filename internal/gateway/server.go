package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/relay-bss/batchmender/internal/batch"
	"github.com/relay-bss/batchmender/internal/config"
	"github.com/relay-bss/batchmender/internal/notify"
	"github.com/relay-bss/batchmender/internal/remediate"
	"github.com/relay-bss/batchmender/internal/remediate/oe"
	"github.com/relay-bss/batchmender/internal/remediate/solution"
	"github.com/relay-bss/batchmender/internal/runtimeapi"
	"github.com/relay-bss/batchmender/models"
)

// singleItemOutcomes mirrors internal/batch's per-category outcome tables
// (ticket status propagated per terminal engine state) for the façade's
// single-item routes, which run an engine directly rather than through the
// Executor's bulk discovery/ticket-resolution path.
var singleItemOutcomes = map[models.ScheduleCategory]map[string]models.TicketStatus{
	models.CategorySolutionEmpty: {
		"COMPLETED": models.TicketResolved,
		"SKIPPED":   models.TicketClosed,
		"FAILED":    models.TicketRejected,
	},
	models.CategoryPartialDataMissing: {
		"REMEDIATED":   models.TicketResolved,
		"NOT_IMPACTED": models.TicketClosed,
		"SKIPPED":      models.TicketClosed,
		"FAILED":       models.TicketPending,
	},
}

// Version is stamped into GET /health; set from the CLI at build time.
var Version = "dev"

// Gateway is the long-running daemon: the scheduler Loop plus the HTTP
// façade over it. It holds no persistence of its own — every durable record
// lives behind the runtime API.
type Gateway struct {
	cfg    *config.Config
	client *runtimeapi.Client
	loop   *Loop

	broadcaster *Broadcaster
	logger      *slog.Logger

	// baseCtx is the daemon's lifetime context, captured in Start. The
	// scheduler start handler must hand the loop this context, not the
	// request's — a request context is cancelled the moment the response is
	// written, which would kill the freshly-started loop.
	baseCtx context.Context
}

// New builds a Gateway from process configuration.
func New(cfg *config.Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	client := runtimeapi.New(cfg.Runtime)
	executor := batch.New(client, logger)
	dispatcher := notify.NewDispatcher(cfg.Notify)
	broadcaster := newBroadcaster()

	pollCfg := solution.PollConfigFromRemediate(cfg.Remediate)
	solutionEngine := func() *solution.Engine { return solution.New(client, pollCfg) }
	oeEngine := func() *oe.Engine { return oe.New(client) }

	loop := NewLoop(client, executor, cfg.Scheduler, logger, dispatcher, solutionEngine, oeEngine)
	loop.OnCycle = func(snap CycleSnapshot) {
		broadcaster.send(SSEEvent{Type: "cycle.completed", Payload: snap})
	}

	return &Gateway{
		cfg:         cfg,
		client:      client,
		loop:        loop,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Start runs the gateway until ctx is cancelled: starts the
// scheduler loop if configured to auto-start, then binds the HTTP server.
func (gw *Gateway) Start(ctx context.Context) error {
	gw.baseCtx = ctx
	if gw.cfg.Scheduler.Enabled {
		gw.loop.Start(ctx)
	}

	host := gw.cfg.Gateway.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := gw.cfg.Gateway.Port
	if port == 0 {
		port = 6090
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	srv := &http.Server{
		Addr:    addr,
		Handler: gw.buildHandler(),
	}

	go func() {
		<-ctx.Done()
		gw.loop.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	gw.logger.Info("gateway: listening", "addr", "http://"+addr)
	gw.broadcaster.send(SSEEvent{Type: "gateway.started", Payload: map[string]string{"addr": "http://" + addr}})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// buildHandler wires every façade route onto a new ServeMux using
// method-prefixed patterns.
func (gw *Gateway) buildHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /status", gw.handleStatus)
	mux.HandleFunc("GET /events", gw.handleEvents)

	mux.HandleFunc("POST /execute", gw.handleExecute)
	mux.HandleFunc("POST /execute/{schedule_id}", gw.handleExecuteSchedule)

	mux.HandleFunc("POST /remediate", gw.handleRemediateBatch)
	mux.HandleFunc("POST /remediate/{solution_id}", gw.handleRemediateSingle)

	mux.HandleFunc("POST /oe/discover", gw.handleOEDiscover)
	mux.HandleFunc("POST /oe/remediate", gw.handleOERemediateBatch)
	mux.HandleFunc("POST /oe/remediate/{service_id}", gw.handleOERemediateSingle)
	mux.HandleFunc("GET /oe/preview/{service_id}", gw.handleOEPreview)

	mux.HandleFunc("POST /scheduler/start", gw.handleSchedulerStart)
	mux.HandleFunc("POST /scheduler/stop", gw.handleSchedulerStop)

	return mux
}

func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:           "ok",
		SchedulerRunning: gw.loop.Running(),
		RuntimeBaseURL:   gw.cfg.Runtime.BaseURL,
		Version:          Version,
		EventSubscribers: gw.broadcaster.subscriberCount(),
	})
}

func (gw *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gw.loop.Status())
}

// handleEvents streams SSE frames to a subscriber until the connection
// closes.
func (gw *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := gw.broadcaster.subscribe()
	defer gw.broadcaster.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-ch:
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (gw *Gateway) handleExecute(w http.ResponseWriter, r *http.Request) {
	jobIDs, err := gw.loop.RunOnce(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, executeResponse{JobIDsCreated: jobIDs})
}

func (gw *Gateway) handleExecuteSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("schedule_id")
	sched, err := gw.client.GetSchedule(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	jobID, err := gw.loop.RunSchedule(r.Context(), sched)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	ids := []string{}
	if jobID != "" {
		ids = append(ids, jobID)
	}
	writeJSON(w, http.StatusOK, executeResponse{JobIDsCreated: ids})
}

func (gw *Gateway) handleRemediateBatch(w http.ResponseWriter, r *http.Request) {
	var req remediateBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	items := req.ItemIDs
	if req.MaxCount > 0 && len(items) > req.MaxCount {
		items = items[:req.MaxCount]
	}

	trackingID := gw.adHocTrackingEntity(r.Context(), req.JobName, models.CategorySolutionEmpty, len(items))
	executor := gw.newExecutor()
	engine := solution.New(gw.client, solution.PollConfigFromRemediate(gw.cfg.Remediate))
	run := func(ctx context.Context, itemID string) *remediate.Result {
		return engine.Run(ctx, itemID, solution.RunOptions{})
	}
	result, err := executor.RunBatch(r.Context(), trackingID, models.CategorySolutionEmpty, items, run)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (gw *Gateway) handleRemediateSingle(w http.ResponseWriter, r *http.Request) {
	solutionID := r.PathValue("solution_id")
	var req remediateSingleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	opts := solution.RunOptions{SkipValidation: req.SkipValidation}
	if req.SFDCUpdates != nil {
		updates, err := decodeSFDCUpdates(req.SFDCUpdates)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.SFDCUpdates = &updates
	}

	engine := solution.New(gw.client, solution.PollConfigFromRemediate(gw.cfg.Remediate))
	result := engine.Run(r.Context(), solutionID, opts)
	gw.applySingleItemOutcome(r.Context(), req.TicketID, models.CategorySolutionEmpty, result)
	writeJSON(w, http.StatusOK, result)
}

func (gw *Gateway) handleOEDiscover(w http.ResponseWriter, r *http.Request) {
	var req oeDiscoverRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	discovered, err := gw.client.DiscoverOEServices(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	// Materialise a problem ticket for each candidate that does not already
	// have one; ticket-creation failures are secondary and never fail
	// the discovery response itself.
	ids := make([]string, 0, len(discovered))
	created := 0
	for _, d := range discovered {
		ids = append(ids, d.TargetID)
		if d.TicketID != "" || d.ServiceProblemID != "" {
			continue
		}
		if err := gw.client.CreateProblemTicket(r.Context(), models.CategoryPartialDataMissing, d.TargetID); err != nil {
			gw.logger.Warn("gateway: creating OE problem ticket failed", "service_id", d.TargetID, "error", err)
			continue
		}
		created++
	}
	writeJSON(w, http.StatusOK, oeDiscoverResponse{Discovered: len(ids), TicketsCreated: created, ServiceIDs: ids})
}

func (gw *Gateway) handleOERemediateBatch(w http.ResponseWriter, r *http.Request) {
	var req remediateBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	items := req.ItemIDs
	if req.MaxCount > 0 && len(items) > req.MaxCount {
		items = items[:req.MaxCount]
	}
	trackingID := gw.adHocTrackingEntity(r.Context(), req.JobName, models.CategoryPartialDataMissing, len(items))
	executor := gw.newExecutor()
	engine := oe.New(gw.client)
	run := func(ctx context.Context, itemID string) *remediate.Result {
		return engine.Run(ctx, itemID, oe.RunOptions{})
	}
	result, err := executor.RunBatch(r.Context(), trackingID, models.CategoryPartialDataMissing, items, run)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (gw *Gateway) handleOERemediateSingle(w http.ResponseWriter, r *http.Request) {
	serviceID := r.PathValue("service_id")
	var req oeRemediateSingleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	engine := oe.New(gw.client)
	result := engine.Run(r.Context(), serviceID, oe.RunOptions{DryRun: req.DryRun, FallbackEmail: req.FallbackEmail})
	gw.applySingleItemOutcome(r.Context(), req.TicketID, models.CategoryPartialDataMissing, result)
	writeJSON(w, http.StatusOK, result)
}

func (gw *Gateway) handleOEPreview(w http.ResponseWriter, r *http.Request) {
	serviceID := r.PathValue("service_id")
	engine := oe.New(gw.client)
	preview, err := engine.Preview(r.Context(), serviceID, oe.RunOptions{})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (gw *Gateway) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	ctx := gw.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	gw.loop.Start(ctx)
	writeJSON(w, http.StatusOK, map[string]bool{"running": gw.loop.Running()})
}

func (gw *Gateway) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	gw.loop.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"running": gw.loop.Running()})
}

// applySingleItemOutcome propagates a single-item engine result to its
// problem ticket, mirroring the batch executor's terminal-status mapping
// for façade routes that run one item outside a batch.
func (gw *Gateway) applySingleItemOutcome(ctx context.Context, ticketID string, category models.ScheduleCategory, result *remediate.Result) {
	if ticketID == "" {
		return
	}
	status, ok := singleItemOutcomes[category][result.FinalState]
	if !ok {
		status = models.TicketRejected
	}
	if err := gw.client.UpdateTicket(ctx, ticketID, status, result.FinalState, result.Message()); err != nil {
		gw.logger.Warn("gateway: updating ticket for single-item result failed", "ticket_id", ticketID, "error", err)
	}
}

// adHocTrackingEntity creates a tracking entity for a manually-triggered
// batch when the caller named one via job_name. Best-effort: a creation
// failure is logged and the batch still runs untracked, the same way other
// secondary tracking updates never mask a batch outcome.
func (gw *Gateway) adHocTrackingEntity(ctx context.Context, jobName string, category models.ScheduleCategory, requested int) string {
	if jobName == "" {
		return ""
	}
	id, err := gw.client.CreateTrackingEntity(ctx, runtimeapi.TrackingDraft{
		Name:              jobName,
		Category:          category,
		RequestedQuantity: requested,
	})
	if err != nil {
		gw.logger.Warn("gateway: creating ad hoc tracking entity failed", "job_name", jobName, "error", err)
		return ""
	}
	return id
}

func (gw *Gateway) newExecutor() *batch.Executor {
	return batch.New(gw.client, gw.logger)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "decoding body: "+err.Error())
		return false
	}
	return true
}

func decodeSFDCUpdates(raw map[string]any) (runtimeapi.SFDCUpdates, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return runtimeapi.SFDCUpdates{}, err
	}
	var out runtimeapi.SFDCUpdates
	if err := json.Unmarshal(b, &out); err != nil {
		return runtimeapi.SFDCUpdates{}, err
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
