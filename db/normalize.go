package db

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NormalizeTimestamps walks a decoded BSON value and converts every native
// timestamp representation to time.Time. It recurses through maps, documents
// and arrays only; other opaque driver types are passed through untouched.
func NormalizeTimestamps(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time()
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC()
	case bson.M:
		out := make(bson.M, len(val))
		for k, item := range val {
			out[k] = NormalizeTimestamps(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = NormalizeTimestamps(item)
		}
		return out
	case bson.D:
		out := make(bson.D, len(val))
		for i, e := range val {
			out[i] = bson.E{Key: e.Key, Value: NormalizeTimestamps(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = NormalizeTimestamps(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = NormalizeTimestamps(item)
		}
		return out
	default:
		return v
	}
}
