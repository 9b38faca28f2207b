package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnknownSide      = errors.New("unknown side")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMissingAssetID   = errors.New("missing asset id")
	ErrRouterClosed     = errors.New("router closed")
	ErrWSDisconnect     = errors.New("websocket disconnected")
)
