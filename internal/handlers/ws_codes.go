// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the session handler.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidSessionIDError = 3003 // Target session ID in the WS URL does not exist or is invalid.
	SessionClosedError    = 3004 // The session was pruned or the server is shutting down.
)
