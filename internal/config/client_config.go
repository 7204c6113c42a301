package config

import "time"

type ClientConfig interface {
	GetRefreshTokenPath() string
	GetRequestTimeout() time.Duration
	GetExpiryBuffer() time.Duration
	GetRenewAttempts() int
	GetRenewBaseDelay() time.Duration
	GetSystemCodeFloor() int
	GetStreamChunkSize() int
}

type Client struct{}

var _ ClientConfig = Client{}

func (Client) GetRefreshTokenPath() string {
	return "/auth/refresh-token"
}

func (Client) GetRequestTimeout() time.Duration {
	return 60 * time.Second
}

// GetExpiryBuffer is how far ahead of the access token's exp claim the
// token is already considered stale.
func (Client) GetExpiryBuffer() time.Duration {
	return 300 * time.Second
}

func (Client) GetRenewAttempts() int {
	return 3
}

func (Client) GetRenewBaseDelay() time.Duration {
	return 1 * time.Second
}

// GetSystemCodeFloor splits envelope codes into the business band (below)
// and the system band (at or above).
func (Client) GetSystemCodeFloor() int {
	return 500000
}

func (Client) GetStreamChunkSize() int {
	return 4 * 1024
}
