package config

type Config interface {
	EnvConfig
	BackendConfig
	AuthConfig
}

type EnvConfig interface {
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
}

type BackendConfig interface {
	GetBackendURL() string
	GetBackendAPIKey() string
}

type mainConfig struct {
	EnvVars
	Auth
}

func New() Config {
	return mainConfig{}
}
