// Package config provides configuration management for rotor.
//
// A Config is built once at startup and passed explicitly to constructors:
//
//	cfg, err := config.Load("rotor.yaml")
//
// # Precedence
//
// Values are applied in this order (later overrides earlier):
//
//  1. Defaults (Default)
//  2. The YAML file, if it exists
//  3. A .env file in the working directory (existing variables win)
//  4. Environment variables
//
// Structured overrides follow the ROTOR_SECTION_FIELD convention, for
// example ROTOR_PROXY_LISTEN_ADDRESS or ROTOR_STORAGE_SQLITE_PATH.
//
// The variables USER_KEYS, GOOGLE_KEYS and REMOVE_GOOGLE_KEYS hold
// "|" separated lists that are appended to auth.user_keys,
// bootstrap.keys and bootstrap.remove_keys. LOG_LEVEL sets the logging
// level unless ROTOR_TELEMETRY_LOGGING_LEVEL is also set.
//
// # Validation
//
// Validate reports every problem at once as a ValidationError whose
// Errors name the offending fields by their YAML path.
package config
