package export

import (
	"encoding/json"
	"io"
)

// JSON renders v (normally a performance with its track and notes) indented
// by two spaces.
func JSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// WriteJSON writes JSON(v) to w.
func WriteJSON(w io.Writer, v any) error {
	data, err := JSON(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
