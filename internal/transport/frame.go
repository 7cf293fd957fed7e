package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/tombee/odoo-mcp/internal/jsonrpc"
	"github.com/tombee/odoo-mcp/internal/mcpsession"
)

// sessionHandler is the subset of mcpsession.Session a transport frame
// dispatch needs.
type sessionHandler interface {
	Handle(ctx context.Context, requestID, method string, params json.RawMessage) (interface{}, error)
	Cancel(requestID string)
}

type cancelParams struct {
	RequestID json.RawMessage `json:"requestId"`
}

// DispatchFrame decodes one JSON-RPC request/notification frame,
// routes it through session, and returns the response frame to write
// back. It returns nil for notifications, which produce no response.
func DispatchFrame(ctx context.Context, session sessionHandler, logger *slog.Logger, data []byte) []byte {
	req, err := jsonrpc.ParseRequest(data)
	if err != nil {
		resp := jsonrpc.NewError(jsonrpc.ID{}, jsonrpc.CodeParseError, err.Error(), nil)
		out, _ := jsonrpc.Marshal(resp)
		return out
	}

	if req.Method == "notifications/cancelled" {
		var params cancelParams
		_ = req.UnmarshalParams(&params)
		session.Cancel(string(params.RequestID))
		return nil
	}

	requestID := req.ID.String()
	result, err := session.Handle(ctx, requestID, req.Method, req.Params)
	if req.IsNotification() {
		if err != nil {
			logger.Warn("notification handling failed", "method", req.Method, "error", err)
		}
		return nil
	}

	if err != nil {
		resp := jsonrpc.NewError(req.ID, codeForError(err), err.Error(), nil)
		out, _ := jsonrpc.Marshal(resp)
		return out
	}

	resp, err := jsonrpc.NewResult(req.ID, result)
	if err != nil {
		resp = jsonrpc.NewError(req.ID, jsonrpc.CodeInternalError, err.Error(), nil)
	}
	out, _ := jsonrpc.Marshal(resp)
	return out
}

func codeForError(err error) int {
	var sessErr *mcpsession.Error
	if errors.As(err, &sessErr) {
		switch sessErr.Kind {
		case mcpsession.KindProtocolError:
			return jsonrpc.CodeInvalidRequest
		case mcpsession.KindToolNotFound:
			return jsonrpc.CodeMethodNotFound
		default:
			return jsonrpc.CodeInternalError
		}
	}
	return jsonrpc.CodeInternalError
}
