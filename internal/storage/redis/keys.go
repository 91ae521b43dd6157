package redis

import "fmt"

// Key prefix for all ranking store data
const keyPrefix = "dice"

// userKey returns the Redis key holding a UserRecord as JSON
func userKey(username string) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, username)
}

// usersListKey returns the Redis LIST of usernames in insertion order
func usersListKey() string {
	return fmt.Sprintf("%s:users", keyPrefix)
}

// tokenIndexKey returns the Redis key for the token -> username index
func tokenIndexKey(token string) string {
	return fmt.Sprintf("%s:idx:token:%s", keyPrefix, token)
}
