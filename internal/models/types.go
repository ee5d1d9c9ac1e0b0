package models

import (
	"time"

	"github.com/tejusbharadwaj/itemhistory/internal/state"
)

// HistoricState is a single persisted state of an item.
type HistoricState struct {
	Time  time.Time   `json:"time"`
	State state.State `json:"-"`
}

// StateUpdate is a live state change received from a source.
type StateUpdate struct {
	Item  string      `json:"item"`
	State state.State `json:"-"`
	Time  time.Time   `json:"time"`
}

// StatePayload is the wire form of a state update on MQTT and Kafka.
type StatePayload struct {
	Item  string `json:"item"`
	State string `json:"state"`
	// Time is a unix timestamp in milliseconds; zero means "now".
	Time int64 `json:"time,omitempty"`
}

// APIResponse represents the response of an external history endpoint.
type APIResponse struct {
	Result []struct {
		Time  int64  `json:"time"`
		State string `json:"state"`
	} `json:"result"`
}
