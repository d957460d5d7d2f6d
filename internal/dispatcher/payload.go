package dispatcher

import "fmt"

// payload helpers decode the loosely-typed map[string]any a task carries
// (the decoded JWT/JSON payload from the local HTTP endpoint) into the
// concrete shapes each handler expects.

func stringField(data map[string]any, key string) string {
	v, _ := data[key].(string)

	return v
}

func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func boolField(data map[string]any, key string) bool {
	v, _ := data[key].(bool)

	return v
}

func mapField(data map[string]any, key string) map[string]any {
	v, _ := data[key].(map[string]any)

	return v
}

func sliceField(data map[string]any, key string) []any {
	v, _ := data[key].([]any)

	return v
}

func requireMapField(data map[string]any, key string) (map[string]any, error) {
	v := mapField(data, key)
	if v == nil {
		return nil, fmt.Errorf("dispatcher: missing required field %q", key)
	}

	return v, nil
}
