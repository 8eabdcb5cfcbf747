// Package config loads the console's configuration from AUTHRIGHT_*
// environment variables and validates it before anything starts.
package config
