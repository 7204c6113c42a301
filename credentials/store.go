package credentials

// Storage slot names for the persisted credential pair.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// Store is the injected key-value persistence abstraction. The concrete
// store (browser local storage in a web host, a file or keychain elsewhere)
// lives outside the core; the core only needs named string slots.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) bool
	Remove(key string) bool
}
