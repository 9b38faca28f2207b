package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by
// "***". Use this when logging the active configuration so secrets never
// reach the log stream.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.Archive.AccessKey)
	redact(&out.Archive.SecretKey)

	return out
}

// redact overwrites a non-empty string with the placeholder.
func redact(s *string) {
	if *s != "" {
		*s = "***"
	}
}
