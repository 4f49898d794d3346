package migrate

// flattenResource flattens nested maps into dot-notation paths
// (metadata.sensor_type). Keys listed in wholesale are emitted as-is without
// descending, so a mapping can consume a structured value in one piece.
// Null values are kept; they matter for the audit of dropped data.
func flattenResource(resource map[string]any, wholesale map[string]bool) map[string]any {
	flat := make(map[string]any, len(resource))
	flattenInto(flat, "", resource, wholesale)
	return flat
}

func flattenInto(flat map[string]any, prefix string, value map[string]any, wholesale map[string]bool) {
	for key, v := range value {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if wholesale[path] {
			flat[path] = v
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(flat, path, nested, wholesale)
			continue
		}
		flat[path] = v
	}
}
