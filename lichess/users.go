package lichess

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/arenawatch/arenawatch/netclient"
)

// upstream limit for the batch users endpoint
const maxUsersPerRequest = 300

const userCacheNamespace = "user"

// GetUsers looks up account metadata for a set of usernames. Results are
// keyed by lowercased username; unknown accounts are absent from the map.
// Lookups are served from the cache where possible, and the remaining ids are
// fetched in batches of up to 300.
func (c *Client) GetUsers(ctx context.Context, usernames []string) (map[string]*User, error) {
	ctx, span := tracer.Start(ctx, "GetUsers")
	defer span.End()

	out := make(map[string]*User, len(usernames))
	var missing []string
	seen := make(map[string]bool, len(usernames))
	for _, name := range usernames {
		id := strings.ToLower(name)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		u, err := c.cachedUser(ctx, id)
		if err != nil {
			c.logger.Warn("user cache read failed", "user", id, "err", err)
		}
		if u != nil {
			out[id] = u
		} else {
			missing = append(missing, id)
		}
	}

	for start := 0; start < len(missing); start += maxUsersPerRequest {
		end := min(start+maxUsersPerRequest, len(missing))
		if err := c.fetchUsers(ctx, missing[start:end], out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (c *Client) cachedUser(ctx context.Context, id string) (*User, error) {
	if c.Cache == nil {
		return nil, nil
	}
	raw, ok, err := c.Cache.Get(ctx, userCacheNamespace, id)
	if err != nil || !ok {
		return nil, err
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		// stale or corrupt entry; refetch
		if err := c.Cache.Purge(ctx, userCacheNamespace, id); err != nil {
			c.logger.Warn("user cache purge failed", "user", id, "err", err)
		}
		return nil, nil
	}
	return &u, nil
}

func (c *Client) fetchUsers(ctx context.Context, ids []string, out map[string]*User) error {
	resp, err := c.do(ctx, netclient.Request{
		Method:      http.MethodPost,
		URL:         c.Host + "/api/users",
		Body:        []byte(strings.Join(ids, ",")),
		ContentType: "text/plain",
		Accept:      "application/json",
	})
	if err != nil {
		return fmt.Errorf("fetching users: %w", err)
	}
	defer resp.Body.Close()

	var records []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return fmt.Errorf("decoding users: %w", err)
	}
	for _, rec := range records {
		var u User
		if err := json.Unmarshal(rec, &u); err != nil {
			return fmt.Errorf("decoding user: %w", err)
		}
		id := strings.ToLower(u.ID)
		out[id] = &u
		if c.Cache != nil {
			if err := c.Cache.Set(ctx, userCacheNamespace, id, string(rec)); err != nil {
				c.logger.Warn("user cache write failed", "user", id, "err", err)
			}
		}
	}
	return nil
}
