package utils

import (
	"encoding/json"
	"errors"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ErrUnparseable is returned by SmartParse when every strategy fails
var ErrUnparseable = errors.New("all parsing strategies failed")

// RepairJSON attempts to fix common JSON errors in provider payloads.
// Uses github.com/RealAlexandreAI/json-repair.
// Supported repairs:
// - Missing quotes around keys
// - Single quotes instead of double quotes
// - Unclosed arrays/objects
// - Trailing commas
// - NaN/None style literals
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair: %w", err)
	}
	return repaired, nil
}

// ParseHJSON converts Human-friendly JSON (comments, unquoted keys,
// optional commas) to standard JSON.
func ParseHJSON(data []byte) ([]byte, error) {
	var result interface{}
	if err := hjson.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("hjson parse: %w", err)
	}

	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	return out, nil
}

// SmartParse tries multiple parsing strategies to decode into v.
// Order of attempts:
// 1. Standard JSON
// 2. JSON repair
// 3. Hjson (most lenient)
func SmartParse(data []byte, v interface{}) error {
	// Try 1: Standard JSON
	if err := json.Unmarshal(data, v); err == nil {
		return nil
	}

	// Try 2: JSON Repair
	if repaired, err := RepairJSON(string(data)); err == nil {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return nil
		}
	}

	// Try 3: Hjson
	if converted, err := ParseHJSON(data); err == nil {
		if err := json.Unmarshal(converted, v); err == nil {
			return nil
		}
	}

	return ErrUnparseable
}
