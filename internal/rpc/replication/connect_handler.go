package replication

import (
	"context"
	"errors"
	"net/http"

	"github.com/bufbuild/connect-go"

	"github.com/replicode-ai/replicode/internal/observability"
	"github.com/replicode-ai/replicode/internal/rpc"
	"github.com/replicode-ai/replicode/internal/rpc/connectjson"
)

const ConnectReplicateProcedure = "/replicode.replication.v1.ReplicationService/Replicate"

// NewConnectHandler builds a Connect bidi stream handler for Replicate.
func NewConnectHandler(runner Runner, metrics *observability.Metrics) (string, http.Handler) {
	h := &connectRunHandler{runner: runner, metrics: metrics}
	return ConnectReplicateProcedure, connect.NewBidiStreamHandler(ConnectReplicateProcedure, h.handle, connect.WithCodec(connectjson.Codec{}))
}

type connectRunHandler struct {
	runner  Runner
	metrics *observability.Metrics
}

func (h *connectRunHandler) handle(ctx context.Context, stream *connect.BidiStream[rpc.ReplicateStreamRequest, rpc.ReplicateEvent]) error {
	h.metrics.IncActiveRuns("connect")
	defer h.metrics.DecActiveRuns("connect")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	first, err := stream.Receive()
	if err != nil {
		h.metrics.RecordTransportError("connect", "receive_first")
		return err
	}
	if first == nil || first.Run == nil {
		h.metrics.RecordTransportError("connect", "missing_run")
		return connect.NewError(connect.CodeInvalidArgument, errors.New("first message must include run payload"))
	}

	// Listen for cancellation messages from the client.
	go func() {
		for {
			msg, recvErr := stream.Receive()
			if recvErr != nil {
				if !errors.Is(recvErr, context.Canceled) {
					h.metrics.RecordTransportError("connect", "receive_stream")
				}
				cancel()
				return
			}
			if msg != nil && msg.Cancel {
				cancel()
				return
			}
		}
	}()

	events, runErr := h.runner.Run(ctx, *first.Run)
	if runErr != nil {
		h.metrics.RecordTransportError("connect", "runner_error")
		return connect.NewError(connect.CodeInvalidArgument, runErr)
	}

	for ev := range events {
		ev := ev
		if err := stream.Send(&ev); err != nil {
			h.metrics.RecordTransportError("connect", "send")
			return err
		}
	}
	return nil
}
