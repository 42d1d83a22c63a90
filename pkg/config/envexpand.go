package config

import (
	"bytes"
	"os"
	"text/template"
)

// ExpandEnv expands environment variables in config content using Go
// templates. Uses {{.VAR_NAME}} syntax to avoid collision with $ characters
// that appear literally in GraphQL queries and auth tokens.
//
// Examples:
//   - {{.API_TOKEN}} → value of API_TOKEN environment variable
//   - {{.DB_HOST}}:{{.DB_PORT}} → hostname:port with both variables expanded
//
// Missing variables expand to empty string (unless the template is
// malformed). Validation catches required fields that end up empty.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		// If template parsing fails, return original data so the JSON
		// parser can handle the content (or fail with a clearer message).
		return data
	}

	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		// Split only on first = to handle values with = in them
		if idx := bytes.IndexByte([]byte(env), '='); idx > 0 {
			envMap[env[:idx]] = env[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap); err != nil {
		return data
	}

	return buf.Bytes()
}
