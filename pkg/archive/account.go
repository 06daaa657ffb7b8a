package archive

import (
	"fmt"
	"sync"

	"github.com/cuemby/imgbackfill/pkg/types"
	"github.com/moby/sys/user"
)

// DefaultAccountName is the unprivileged account archive entries are
// handed to in restricted-ownership deployments.
const DefaultAccountName = "nobody"

// Account is a resolved system account.
type Account struct {
	Name string
	UID  int
	GID  int
}

// LookupFunc resolves an account by name.
type LookupFunc func(name string) (Account, error)

// AccountCache resolves an account once and keeps the result for the
// life of the process. A failed lookup is not cached.
type AccountCache struct {
	name   string
	lookup LookupFunc

	mu       sync.Mutex
	resolved *Account
}

// NewAccountCache creates a cache for the named account using the
// system passwd database.
func NewAccountCache(name string) *AccountCache {
	return NewAccountCacheWithLookup(name, lookupPasswd)
}

// NewAccountCacheWithLookup creates a cache with a custom lookup.
func NewAccountCacheWithLookup(name string, lookup LookupFunc) *AccountCache {
	if name == "" {
		name = DefaultAccountName
	}
	return &AccountCache{name: name, lookup: lookup}
}

// Name returns the account name this cache resolves.
func (c *AccountCache) Name() string {
	return c.name
}

// Get returns the cached account, resolving it on first use.
func (c *AccountCache) Get() (Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolved != nil {
		return *c.resolved, nil
	}

	acct, err := c.lookup(c.name)
	if err != nil {
		return Account{}, &types.StageError{
			Kind:  types.ErrAccountLookup,
			Stage: "account",
			Err:   fmt.Errorf("could not get %s user: %w", c.name, err),
		}
	}
	c.resolved = &acct
	return acct, nil
}

func lookupPasswd(name string) (Account, error) {
	u, err := user.LookupUser(name)
	if err != nil {
		return Account{}, err
	}
	return Account{Name: u.Name, UID: u.Uid, GID: u.Gid}, nil
}
