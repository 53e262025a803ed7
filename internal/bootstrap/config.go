package bootstrap

import (
	"log"

	"github.com/go-authgate/accountgate/internal/config"
)

// validateAllConfiguration validates all configuration settings
func validateAllConfiguration(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	warnInsecureDefaults(cfg)
}

// insecureDefaults are the placeholder secrets shipped in config.Load
var insecureDefaults = map[string]string{
	"SESSION_SECRET":      "session-secret-change-in-production",
	"VERIFICATION_SECRET": "verification-secret-change-in-production",
}

// warnInsecureDefaults logs every secret still set to its placeholder value
// and returns their names
func warnInsecureDefaults(cfg *config.Config) []string {
	values := map[string]string{
		"SESSION_SECRET":      cfg.SessionSecret,
		"VERIFICATION_SECRET": cfg.VerificationSecret,
	}
	var weak []string
	for _, name := range []string{"SESSION_SECRET", "VERIFICATION_SECRET"} {
		if values[name] == insecureDefaults[name] {
			log.Printf("WARNING: %s uses the built-in default, set it before going to production", name)
			weak = append(weak, name)
		}
	}
	return weak
}
