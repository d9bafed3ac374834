// internal/game/utils.go
package game

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// EncodeEvent marshals a SessionEvent into JSON bytes.
// Logs a warning and returns empty JSON "{}" on marshalling error.
func EncodeEvent(ev SessionEvent) []byte {
	data, err := json.Marshal(ev)
	if err != nil {
		logrus.Warnf("failed to marshal SessionEvent type %s: %v", ev.Type, err)
		return []byte("{}")
	}
	return data
}
