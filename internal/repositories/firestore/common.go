package firestore

import (
	"errors"
	"time"

	"github.com/maison-panier/api/internal/platform/pagination"
)

func cloneAnyMap(values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

// encodeCursorToken packs the last document's sort key and ID into an opaque
// page token. Tokens survive URL transport without extra escaping.
func encodeCursorToken(at time.Time, docID string) string {
	token, err := pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{at.UTC().Format(time.RFC3339Nano), docID},
	})
	if err != nil {
		return ""
	}
	return token
}

func decodeCursorToken(token string) (time.Time, string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return time.Time{}, "", err
	}
	if len(cursor.StartAfter) != 2 {
		return time.Time{}, "", errors.New("invalid token format")
	}
	raw, ok := cursor.StartAfter[0].(string)
	if !ok {
		return time.Time{}, "", errors.New("invalid token format")
	}
	docID, ok := cursor.StartAfter[1].(string)
	if !ok {
		return time.Time{}, "", errors.New("invalid token format")
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, docID, nil
}
