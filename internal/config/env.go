package config

import (
	"os"
	"regexp"
	"strings"
)

// Matches ${NAME} and ${NAME:-fallback}.
var envVarRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}`)

func substituteEnvVars(content []byte) []byte {
	return envVarRegex.ReplaceAllFunc(content, func(match []byte) []byte {
		sub := envVarRegex.FindSubmatch(match)
		if value, exists := os.LookupEnv(string(sub[1])); exists {
			return []byte(value)
		}
		if len(sub[2]) > 0 {
			return sub[2][2:]
		}
		return match
	})
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + strings.TrimPrefix(path, "~")
}
