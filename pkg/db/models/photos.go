package models

import "encoding/json"

// EncodePhotos renders photo references for map-based updates, which bypass
// the json serializer declared on the Photos fields.
func EncodePhotos(photos []string) string {
	if len(photos) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(photos)
	if err != nil {
		return "[]"
	}
	return string(raw)
}
