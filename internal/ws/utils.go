package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const readTimeout = 5 * time.Minute

// ReadRaw reads one text frame with a read deadline, returning the raw
// bytes so the caller can peek at the action envelope before fully
// decoding the payload.
func ReadRaw(conn *websocket.Conn) ([]byte, error) {
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, data, err := conn.ReadMessage()
	return data, err
}

// PeekAction decodes only the action field of an inbound frame.
func PeekAction(data []byte) (Action, error) {
	var env RequestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	return env.Action, nil
}
