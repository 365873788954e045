// Package auth is the client for the external account/authentication
// service. Lookups are idempotent
// and cached per connection; the cache is invalidated when the worker
// releases the connection.
package auth

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v4"
	"golang.org/x/xerrors"

	"gamecore/internal/config"
	"gamecore/internal/log"
)

// User is the authenticated identity the anti-cheat layer validates
// names and cosmetics against.
type User struct {
	ID             uint32   `msgpack:"id"`
	DisplayName    string   `msgpack:"display_name"`
	OwnedCosmetics []uint32 `msgpack:"owned_cosmetics"`
}

// API is the collaborator contract. A nil result with a nil error means
// the connection has no account (anonymous play).
type API interface {
	GetConnectionUser(ctx context.Context, clientID uint32, username string) (*User, error)
	Forget(clientID uint32)
}

type userRequest struct {
	ClientID uint32 `msgpack:"client_id"`
	Username string `msgpack:"username"`
}

// Client talks msgpack-over-HTTP to the auth service.
type Client struct {
	base   string
	hc     *http.Client
	logger log.Logger

	mu    sync.Mutex
	cache map[uint32]*User
	seen  map[uint32]bool
}

// NewClient builds a client for the configured base URL.
func NewClient(cfg config.AuthConfig, logger log.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		base:   cfg.BaseURL,
		hc:     &http.Client{Timeout: timeout},
		logger: logger,
		cache:  make(map[uint32]*User),
		seen:   make(map[uint32]bool),
	}
}

// GetConnectionUser resolves the account behind a connection, serving
// repeats from the per-connection cache (negative results included).
func (c *Client) GetConnectionUser(ctx context.Context, clientID uint32, username string) (*User, error) {
	c.mu.Lock()
	if c.seen[clientID] {
		u := c.cache[clientID]
		c.mu.Unlock()
		return u, nil
	}
	c.mu.Unlock()

	body, err := msgpack.Marshal(userRequest{ClientID: clientID, Username: username})
	if err != nil {
		return nil, xerrors.Errorf("encode user request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/connections/user", bytes.NewReader(body))
	if err != nil {
		return nil, xerrors.Errorf("build user request: %w", err)
	}
	req.Header.Set("Content-Type", "application/msgpack")

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("auth request: %w", err)
	}
	defer res.Body.Close()

	var user *User
	switch res.StatusCode {
	case http.StatusOK:
		user = &User{}
		if err := msgpack.NewDecoder(res.Body).Decode(user); err != nil {
			return nil, xerrors.Errorf("decode user: %w", err)
		}
	case http.StatusNotFound:
		user = nil
	default:
		return nil, xerrors.Errorf("auth service status %d", res.StatusCode)
	}

	c.mu.Lock()
	c.cache[clientID] = user
	c.seen[clientID] = true
	c.mu.Unlock()
	return user, nil
}

// Forget drops the cached identity when the connection goes away.
func (c *Client) Forget(clientID uint32) {
	c.mu.Lock()
	delete(c.cache, clientID)
	delete(c.seen, clientID)
	c.mu.Unlock()
}
