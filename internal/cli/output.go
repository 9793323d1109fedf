package cli

import (
	"encoding/json"
	"io"

	"eventspool/internal/store"
)

// RecordsResult is printed by peek and drain.
type RecordsResult struct {
	Count   int            `json:"count"`
	Records []store.Record `json:"records"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
