package helper

import (
	"encoding/json"
	"os"
)

// NewStructFromFile reads a JSON file into v.
func NewStructFromFile(filename string, v any) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	return nil
}
