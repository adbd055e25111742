package proxmox

import "strings"

// parseTagOptions extracts tags from the cluster options: every entry of
// allowed-tags (list or separated string) and every name in the tag-style
// color-map ("name:bg[:fg];...").
func parseTagOptions(options map[string]interface{}) map[string]string {
	tags := make(map[string]string)

	switch allowed := options["allowed-tags"].(type) {
	case string:
		for _, name := range splitTags(allowed) {
			tags[name] = ""
		}
	case []interface{}:
		for _, v := range allowed {
			if name := strings.TrimSpace(stringValue(v)); name != "" {
				tags[name] = ""
			}
		}
	}

	for _, entry := range strings.Split(colorMap(options["tag-style"]), ";") {
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" {
			continue
		}
		tags[strings.TrimSpace(parts[0])] = strings.ToLower(strings.TrimSpace(parts[1]))
	}

	return tags
}

// colorMap returns the color-map of a tag-style option, which PVE reports
// either decoded as an object or as a property string.
func colorMap(style interface{}) string {
	switch s := style.(type) {
	case map[string]interface{}:
		return stringValue(s["color-map"])
	case string:
		for _, part := range strings.Split(s, ",") {
			if key, value, found := strings.Cut(part, "="); found && key == "color-map" {
				return value
			}
		}
	}
	return ""
}
