package feed

import (
	"fmt"
	"iter"

	"github.com/tidwall/gjson"

	"github.com/CThaw90/refocus-dataset/internal/records"
)

// JSONArray yields the objects of the array found at path in data. An empty
// path means the document itself is the array. Numbers keep their JSON text
// as strings so large identifiers and dates survive untouched; booleans and
// null map to bool and nil. Nested values are kept as raw JSON text.
func JSONArray(data []byte, path string) iter.Seq2[records.Record, error] {
	return func(yield func(records.Record, error) bool) {
		if !gjson.ValidBytes(data) {
			yield(nil, fmt.Errorf("feed: invalid json document"))
			return
		}
		arr := gjson.ParseBytes(data)
		if path != "" {
			arr = arr.Get(path)
		}
		if !arr.Exists() {
			yield(nil, fmt.Errorf("feed: json path %q not found", path))
			return
		}
		if !arr.IsArray() {
			yield(nil, fmt.Errorf("feed: json path %q is %s, not an array", path, arr.Type))
			return
		}
		for i, item := range arr.Array() {
			if !item.IsObject() {
				yield(nil, fmt.Errorf("feed: json %s[%d] is not an object", path, i))
				return
			}
			if !yield(objectRecord(item), nil) {
				return
			}
		}
	}
}

func objectRecord(obj gjson.Result) records.Record {
	rec := records.Record{}
	obj.ForEach(func(key, value gjson.Result) bool {
		rec[key.String()] = scalar(value)
		return true
	})
	return rec
}

func scalar(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		return v.Raw
	case gjson.String:
		return v.Str
	default:
		return v.Raw
	}
}
