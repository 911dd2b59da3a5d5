package featureflags

import (
	"os"
	"strings"
)

// SelfRegistration lets a society register without a pre-assigned code
const SelfRegistration = "self_registration"

// Flags is a snapshot of FLAG_<NAME> environment variables
type Flags map[string]bool

// Load reads every FLAG_<NAME>=true/1/yes/on variable from the environment
func Load() Flags {
	return parse(os.Environ())
}

func parse(environ []string) Flags {
	flags := Flags{}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, "FLAG_") {
			continue
		}
		flags[strings.ToLower(strings.TrimPrefix(name, "FLAG_"))] = truthy(value)
	}
	return flags
}

// Enabled reports whether a flag is on. Names are case-insensitive.
func (f Flags) Enabled(name string) bool {
	return f[strings.ToLower(name)]
}

// Enabled returns true if a flag is enabled via environment variable.
func Enabled(name string) bool {
	return truthy(os.Getenv("FLAG_" + strings.ToUpper(name)))
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
