package ctfd

import (
	"encoding/json"
	"fmt"

	"github.com/dimasma0305/ctfdumper/function/log"
)

// Fetch GETs an API url and decodes the data member of a successful
// {"success": true, "data": ...} envelope into data.
func (r *Repository) Fetch(url string, data any) error {
	log.Debug("Fetching %s", url)
	res, err := r.session.Get(url)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if !res.OK() {
		return fmt.Errorf("%w: request to %s end with %d status", ErrFetch, url, res.StatusCode)
	}
	return getData(res.Bytes(), data)
}

// Parse information from ctfd and get data response
func getData(body []byte, data any) error {
	var tmp struct {
		Message string          `json:"message"`
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := decodeJSON(body, &tmp); err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if !tmp.Success {
		if tmp.Message != "" {
			return fmt.Errorf("%w: request end with %s status", ErrFetch, tmp.Message)
		}
		return fmt.Errorf("%w: request end with unsuccessful status", ErrFetch)
	}
	if err := decodeJSON(tmp.Data, data); err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return nil
}
