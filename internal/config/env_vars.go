package config

import "os"

const (
	appNameVar    = "APP_NAME"
	folderEnvVar  = "FOLDER"
	backendURLVar = "AUTH_BACKEND_URL"
	apiKeyVar     = "AUTH_API_KEY"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}
var _ BackendConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "TradeVault Auth")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBackendURL returns the base URL of the hosted identity backend
// (e.g. "https://abc.supabase.co/auth/v1"). There is no default: an empty
// value is a configuration error and client construction fails.
func (EnvVars) GetBackendURL() string {
	return GetEnv(backendURLVar, "")
}

func (EnvVars) GetBackendAPIKey() string {
	return GetEnv(apiKeyVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
