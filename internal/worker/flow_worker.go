package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/plomtts-service/internal/setup"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
)

const flowStepTimeout = 60 * time.Second

// FlowWorker exposes a setup.Manager over two NATS subjects: one starts flows,
// the other submits step input.
type FlowWorker struct {
	natsConnection *nats.Conn
	startSubject   string
	stepSubject    string
	manager        *setup.Manager
	log            *logger.Logger
}

// NewFlowWorker creates a flow worker.
func NewFlowWorker(
	natsConnection *nats.Conn,
	startSubject, stepSubject string,
	manager *setup.Manager,
	log *logger.Logger,
) *FlowWorker {
	return &FlowWorker{
		natsConnection: natsConnection,
		startSubject:   startSubject,
		stepSubject:    stepSubject,
		manager:        manager,
		log:            log,
	}
}

// Run serves both subjects until ctx is cancelled.
func (w *FlowWorker) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error { return serve(groupCtx, w.natsConnection, w.startSubject, w.handleStart) })
	group.Go(func() error { return serve(groupCtx, w.natsConnection, w.stepSubject, w.handleStep) })

	return group.Wait()
}

func (w *FlowWorker) handleStart(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), flowStepTimeout)
	defer cancel()

	var request FlowStartRequest

	err := json.Unmarshal(msg.Data, &request)
	if err != nil {
		w.fail(msg, fmt.Errorf("invalid flow start request: %w", err))

		return
	}

	result, err := w.manager.Start(ctx, request.Kind, request.EntryID)
	if err != nil {
		w.fail(msg, err)

		return
	}

	respond(w.log, msg, result)
}

func (w *FlowWorker) handleStep(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), flowStepTimeout)
	defer cancel()

	var request FlowStepRequest

	err := json.Unmarshal(msg.Data, &request)
	if err != nil {
		w.fail(msg, fmt.Errorf("invalid flow step request: %w", err))

		return
	}

	result, err := w.manager.Step(ctx, request.FlowID, request.Input)
	if err != nil {
		w.fail(msg, err)

		return
	}

	respond(w.log, msg, result)
}

func (w *FlowWorker) fail(msg *nats.Msg, err error) {
	w.log.Warn("Flow request on %s failed: %v", msg.Subject, err)
	respond(w.log, msg, FlowErrorReply{Error: err.Error()})
}
