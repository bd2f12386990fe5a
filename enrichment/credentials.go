package enrichment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveAPIKey finds the OpenAI API key. Lookup order: the explicit value,
// api_key.txt in the working directory, the OPENAI_API_KEY environment
// variable, a .env file, then ~/.openai_key.
func ResolveAPIKey(explicit string) (string, error) {
	if key := strings.TrimSpace(explicit); key != "" {
		return key, nil
	}

	if key := readKeyFile("api_key.txt"); key != "" {
		return key, nil
	}

	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		return key, nil
	}

	if key := readEnvFile(".env"); key != "" {
		return key, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		if key := readKeyFile(filepath.Join(home, ".openai_key")); key != "" {
			return key, nil
		}
	}

	return "", fmt.Errorf("OPENAI_API_KEY not found: set the environment variable or create api_key.txt/.env")
}

func readKeyFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// readEnvFile extracts OPENAI_API_KEY=... from a dotenv-style file.
func readEnvFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "OPENAI_API_KEY=") {
			continue
		}
		key := strings.TrimPrefix(line, "OPENAI_API_KEY=")
		key = strings.Trim(strings.TrimSpace(key), `"'`)
		if key != "" {
			return key
		}
	}
	return ""
}
