package redis

import (
	"context"
	_ "embed"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed lua/release_owned.lua
var luaReleaseOwned string

//go:embed lua/extend_owned.lua
var luaExtendOwned string

var (
	releaseOwnedScript = redis.NewScript(luaReleaseOwned)
	extendOwnedScript  = redis.NewScript(luaExtendOwned)
)

// ReleaseOwned deletes key only while it still holds owner. It reports
// whether the key was removed.
func (c *Client) ReleaseOwned(ctx context.Context, key, owner string) (bool, error) {
	if c.scripts == nil {
		return false, errNotInitialized
	}
	n, err := releaseOwnedScript.Run(ctx, c.scripts, []string{key}, owner).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExtendOwned pushes the expiry of key out to ttl while owner still holds it.
func (c *Client) ExtendOwned(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if c.scripts == nil {
		return false, errNotInitialized
	}
	n, err := extendOwnedScript.Run(ctx, c.scripts, []string{key}, owner, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// LoadScripts caches the lock scripts on the server so the first release
// does not fall back from EVALSHA to EVAL.
func (c *Client) LoadScripts(ctx context.Context) error {
	if c.scripts == nil {
		return errNotInitialized
	}
	for _, script := range []*redis.Script{releaseOwnedScript, extendOwnedScript} {
		if err := script.Load(ctx, c.scripts).Err(); err != nil {
			return err
		}
	}
	return nil
}
