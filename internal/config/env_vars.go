package config

import (
	"os"
	"strings"
)

const (
	baseURLVar = "CHAT_BASE_URL"
	appNameVar = "APP_NAME"
	tokenVar   = "CHAT_REFRESH_TOKEN"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

type EnvConfig interface {
	GetBaseURL() string
	GetAppName() string
	GetRefreshToken() string
	GetEnv() string
}

func (EnvVars) GetBaseURL() string {
	return strings.TrimRight(GetEnv(baseURLVar, "http://localhost:8080"), "/")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go Chat Client")
}

// GetRefreshToken returns the bootstrap refresh token, used by the demo
// binary to seed the credential store before the first call.
func (EnvVars) GetRefreshToken() string {
	return GetEnv(tokenVar, "")
}

func (EnvVars) GetEnv() string {
	return GetEnv("ENV", "development")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
