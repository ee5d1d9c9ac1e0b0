package server

import (
	"time"

	"github.com/tejusbharadwaj/itemhistory/internal/persistence"
)

// ResultFields flattens a result into the response fields shared by the gRPC
// and HTTP transports.
func ResultFields(res persistence.Result) map[string]interface{} {
	fields := map[string]interface{}{"kind": res.Kind()}
	switch r := res.(type) {
	case persistence.Scalar:
		fields["value"] = r.Value
		fields["unit"] = r.Unit
	case persistence.Boolean:
		fields["bool"] = r.Value
	case persistence.Count:
		fields["count"] = float64(r.N)
	case persistence.Timestamp:
		fields["time"] = r.Time.Format(time.RFC3339Nano)
	case persistence.PointInTime:
		fields["value"] = r.Value
		fields["unit"] = r.Unit
		fields["time"] = r.Time.Format(time.RFC3339Nano)
	}
	return fields
}
