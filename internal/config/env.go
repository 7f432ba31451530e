package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// placeholderPattern matches values that were copied from a template and
// never filled in. Such values must fail startup, not fail the first call.
var placeholderPattern = regexp.MustCompile(`(?i)(your[-_ ]|changeme|change-me|placeholder|^xxx+$|^<.*>$|^\.\.\.$|replace)`)

// providerEnvVars maps a provider name to the environment variables that
// can satisfy its credential, in lookup order.
var providerEnvVars = map[string][]string{
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"gemini":    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	// ollama is a local endpoint; no credential required.
	"ollama": {},
}

// ProviderAPIKey resolves the credential for a provider from the
// environment. The bool reports whether the provider needs one at all.
func ProviderAPIKey(provider string) (string, bool) {
	vars, ok := providerEnvVars[provider]
	if !ok || len(vars) == 0 {
		return "", false
	}
	for _, name := range vars {
		if v := os.Getenv(name); v != "" {
			return v, true
		}
	}
	return "", true
}

// ValidateProviderEnv checks a single provider's credential. Commands
// that only touch one provider use this instead of the full ValidateEnv.
func ValidateProviderEnv(provider string) error {
	key, required := ProviderAPIKey(provider)
	if !required {
		return nil
	}
	names := strings.Join(providerEnvVars[provider], " or ")
	switch {
	case key == "":
		return fmt.Errorf("%s is not set (required for provider %q)", names, provider)
	case placeholderPattern.MatchString(key):
		return fmt.Errorf("%s still holds a placeholder value (provider %q)", names, provider)
	}
	return nil
}

// ValidateEnv fails fast when a required secret is missing or still a
// placeholder. It checks the embedding provider and both judges.
func ValidateEnv(cfg *Config) error {
	seen := map[string]bool{}
	var problems []string

	check := func(provider string) {
		if provider == "" || seen[provider] {
			return
		}
		seen[provider] = true

		key, required := ProviderAPIKey(provider)
		if !required {
			return
		}
		names := strings.Join(providerEnvVars[provider], " or ")
		switch {
		case key == "":
			problems = append(problems, fmt.Sprintf("%s is not set (required for provider %q)", names, provider))
		case placeholderPattern.MatchString(key):
			problems = append(problems, fmt.Sprintf("%s still holds a placeholder value (provider %q)", names, provider))
		}
	}

	check(cfg.Embedding.Provider)
	check(cfg.Judges.Judge1.Provider)
	check(cfg.Judges.Judge2.Provider)

	if len(problems) > 0 {
		return fmt.Errorf("environment validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
