// Package ingest brings item states into the system: live updates from MQTT
// and Kafka, periodic snapshots, and bulk imports of past history.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tejusbharadwaj/itemhistory/internal/models"
	"github.com/tejusbharadwaj/itemhistory/internal/state"
)

var ErrBadPayload = errors.New("bad state payload")

// DecodePayload reads a JSON encoded models.StatePayload. A missing time
// means the update happened at now.
func DecodePayload(data []byte, now time.Time) (models.StateUpdate, error) {
	var p models.StatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.StateUpdate{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return payloadUpdate(p, now)
}

// DecodeTopicPayload accepts either a JSON payload or a bare state such as
// "21.5 °C", in which case the item is taken from the topic.
func DecodeTopicPayload(pattern, topic string, data []byte, now time.Time) (models.StateUpdate, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var p models.StatePayload
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return models.StateUpdate{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		if p.Item == "" {
			p.Item = topicItem(pattern, topic)
		}
		return payloadUpdate(p, now)
	}
	return payloadUpdate(models.StatePayload{Item: topicItem(pattern, topic), State: string(trimmed)}, now)
}

func payloadUpdate(p models.StatePayload, now time.Time) (models.StateUpdate, error) {
	if p.Item == "" {
		return models.StateUpdate{}, fmt.Errorf("%w: missing item", ErrBadPayload)
	}
	s, err := state.Parse(p.State)
	if err != nil {
		return models.StateUpdate{}, fmt.Errorf("%w: item %s: %v", ErrBadPayload, p.Item, err)
	}
	at := now
	if p.Time != 0 {
		at = time.UnixMilli(p.Time).UTC()
	}
	return models.StateUpdate{Item: p.Item, State: s, Time: at}, nil
}

// topicItem returns the topic level matched by the single level wildcard
// of pattern, e.g. "Kitchen" for items/+/state and items/Kitchen/state.
func topicItem(pattern, topic string) string {
	pl := strings.Split(pattern, "/")
	tl := strings.Split(topic, "/")
	for i, p := range pl {
		if p == "+" && i < len(tl) {
			return tl[i]
		}
	}
	return ""
}
