package hdo

import (
	"encoding/json"
	"os"
)

// CodeDescriptor holds metadata about a configured HDO number the service
// should keep refreshed.
type CodeDescriptor struct {
	Code  int    `json:"code"`
	Name  string `json:"name"`
	Notes string `json:"notes,omitempty"`
}

const codesEnv = "HDOMANAGER_CODES_JSON"

func defaultCodes() []CodeDescriptor {
	return []CodeDescriptor{
		{
			Code:  145,
			Name:  "HDO 145",
			Notes: "Common household storage-heating rate",
		},
	}
}

// ConfiguredCodes returns the HDO numbers to refresh, overridable through
// the HDOMANAGER_CODES_JSON environment variable.
func ConfiguredCodes() []CodeDescriptor {
	raw := os.Getenv(codesEnv)
	if raw == "" {
		return defaultCodes()
	}
	var out []CodeDescriptor
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out) == 0 {
		return defaultCodes()
	}
	return out
}

// GetConfiguredCode looks up one configured descriptor by code.
func GetConfiguredCode(code int) (CodeDescriptor, bool) {
	for _, c := range ConfiguredCodes() {
		if c.Code == code {
			return c, true
		}
	}
	return CodeDescriptor{}, false
}
