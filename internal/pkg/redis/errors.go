package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// IsNil reports whether err means the key does not exist.
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
