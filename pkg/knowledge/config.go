package knowledge

import (
	"fmt"
	"strconv"
)

// getStringFromConfig gets string value from config map
func getStringFromConfig(config map[string]interface{}, key string) string {
	if config == nil {
		return ""
	}
	if val, ok := config[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
		return fmt.Sprintf("%v", val)
	}
	return ""
}

// getIntFromConfig gets integer value from config map
func getIntFromConfig(config map[string]interface{}, key string) int {
	if config == nil {
		return 0
	}
	if val, ok := config[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		case string:
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
	}
	return 0
}
