package store

import (
	"fmt"

	"github.com/roach88/framesched/internal/ir"
)

// marshalDetail converts an event detail to canonical JSON TEXT.
func marshalDetail(detail ir.Object) (string, error) {
	if detail == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(detail)
	if err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return string(data), nil
}

// unmarshalDetail parses a detail column. An empty object reads back as nil
// so a journaled event compares equal to the one that was written.
func unmarshalDetail(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	v, err := ir.ParseValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal detail: %w", err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal detail: expected object, got %T", v)
	}
	return obj, nil
}
