package engine

import (
	"context"

	"github.com/irfanghat/spark-connect-go/pkg/wire"
)

// SetConfig writes config pairs on the service and records them as local
// overrides so later snapshots carry them. Returns server warnings, if any.
func (e *Engine) SetConfig(ctx context.Context, pairs map[string]string) ([]string, error) {
	resp, err := e.config(ctx, &wire.ConfigRequest{
		Operation: wire.ConfigOpSet,
		Pairs:     pairs,
	})
	if err != nil {
		return nil, err
	}
	for k, v := range pairs {
		e.sess.SetConfig(k, v)
	}
	return resp.Warnings, nil
}

// GetConfig reads config values for keys. Local overrides win over what the
// service reports.
func (e *Engine) GetConfig(ctx context.Context, keys ...string) (map[string]string, error) {
	resp, err := e.config(ctx, &wire.ConfigRequest{
		Operation: wire.ConfigOpGet,
		Keys:      keys,
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(resp.Pairs))
	for k, v := range resp.Pairs {
		out[k] = v
	}
	for _, k := range keys {
		if v, ok := e.sess.ConfigValue(k); ok {
			out[k] = v
		}
	}
	return out, nil
}

// GetAllConfig reads the full effective config, local overrides applied on
// top.
func (e *Engine) GetAllConfig(ctx context.Context) (map[string]string, error) {
	resp, err := e.config(ctx, &wire.ConfigRequest{Operation: wire.ConfigOpGetAll})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(resp.Pairs))
	for k, v := range resp.Pairs {
		out[k] = v
	}
	for k, v := range e.sess.Snapshot().Config {
		out[k] = v
	}
	return out, nil
}

// UnsetConfig clears config keys on the service. Returns server warnings, if
// any.
func (e *Engine) UnsetConfig(ctx context.Context, keys ...string) ([]string, error) {
	resp, err := e.config(ctx, &wire.ConfigRequest{
		Operation: wire.ConfigOpUnset,
		Keys:      keys,
	})
	if err != nil {
		return nil, err
	}
	return resp.Warnings, nil
}

func (e *Engine) config(ctx context.Context, req *wire.ConfigRequest) (*wire.ConfigResponse, error) {
	snap := e.sess.Snapshot()
	req.SessionID = snap.SessionID
	req.UserContext = snap.User
	req.ClientType = snap.ClientType

	resp, err := e.streamer.Config(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, serverErrorToError(resp.Error)
	}
	return resp, nil
}

// InterruptAll cancels every running operation of the session on the
// service. Returns the interrupted operation ids.
func (e *Engine) InterruptAll(ctx context.Context) ([]string, error) {
	return e.interrupt(ctx, &wire.InterruptRequest{InterruptType: wire.InterruptAll})
}

// InterruptOperation cancels one operation by id on the service.
func (e *Engine) InterruptOperation(ctx context.Context, operationID string) ([]string, error) {
	return e.interrupt(ctx, &wire.InterruptRequest{
		InterruptType: wire.InterruptOperationID,
		OperationID:   operationID,
	})
}

// InterruptTag cancels every running operation carrying the tag.
func (e *Engine) InterruptTag(ctx context.Context, tag string) ([]string, error) {
	return e.interrupt(ctx, &wire.InterruptRequest{
		InterruptType: wire.InterruptTag,
		Tag:           tag,
	})
}

func (e *Engine) interrupt(ctx context.Context, req *wire.InterruptRequest) ([]string, error) {
	snap := e.sess.Snapshot()
	req.SessionID = snap.SessionID
	req.UserContext = snap.User
	req.ClientType = snap.ClientType

	resp, err := e.streamer.Interrupt(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.InterruptedIDs, nil
}
