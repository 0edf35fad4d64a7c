package filestore

import (
	"context"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/pkg/errors"

	"github.com/sda-network/sda"
)

// DefaultCacheTTL bounds how long directory documents stay in the read cache
const DefaultCacheTTL = 10 * time.Minute

// Directory is a durable sda.Directory. Entries only hold public material, so
// reads are served from an in-memory cache in front of the disk.
type Directory struct {
	agents *store
	keys   *store
	cache  *bigcache.BigCache

	// serialises the verify-then-insert of signed keys against agent creation
	mu sync.Mutex
}

var _ sda.Directory = (*Directory)(nil)

// NewDirectory opens or creates a directory under root. The cache is
// released when ctx is done or Close is called.
func NewDirectory(ctx context.Context, root string, ttl time.Duration) (*Directory, error) {
	agents, err := newStore(root, "agents")
	if err != nil {
		return nil, err
	}
	keys, err := newStore(root, "signed_encryption_keys")
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	config := bigcache.DefaultConfig(ttl)
	config.Verbose = false
	config.HardMaxCacheSize = 64
	cache, err := bigcache.New(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "create directory cache")
	}

	return &Directory{agents: agents, keys: keys, cache: cache}, nil
}

// Close releases the read cache
func (d *Directory) Close() error {
	return d.cache.Close()
}

func (d *Directory) CreateAgent(agent sda.Agent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.agents.put(agent.ID.String(), agent); err != nil {
		if errors.Is(err, sda.ErrDuplicateKey) {
			return sda.ErrDuplicateKey.WithContext("agent", agent.ID.String())
		}
		return err
	}
	return nil
}

func (d *Directory) GetAgent(id sda.AgentID) (sda.Agent, bool, error) {
	var agent sda.Agent
	ok, err := d.cachedGet(d.agents, "agent/", id.String(), &agent)
	if err != nil || !ok {
		return sda.Agent{}, false, err
	}
	return agent, true, nil
}

func (d *Directory) CreateEncryptionKey(key sda.SignedEncryptionKey) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	agent, ok, err := d.GetAgent(key.Signer)
	if err != nil {
		return err
	}
	if !ok {
		return sda.ErrAgentNotFound.WithContext("agent", key.Signer.String())
	}
	if !sda.VerifySignedEncryptionKey(agent, key) {
		return sda.ErrUntrustedKey.WithContext("agent", key.Signer.String())
	}
	if err := d.keys.put(key.Body.ID.String(), key); err != nil {
		if errors.Is(err, sda.ErrDuplicateKey) {
			return sda.ErrDuplicateKey.WithContext("encryption_key", key.Body.ID.String())
		}
		return err
	}
	return nil
}

func (d *Directory) GetEncryptionKey(id sda.EncryptionKeyID) (sda.SignedEncryptionKey, bool, error) {
	var key sda.SignedEncryptionKey
	ok, err := d.cachedGet(d.keys, "key/", id.String(), &key)
	if err != nil || !ok {
		return sda.SignedEncryptionKey{}, false, err
	}
	return key, true, nil
}

func (d *Directory) SuggestCommittee() ([]sda.ClerkCandidate, error) {
	ids, err := d.keys.ids()
	if err != nil {
		return nil, err
	}

	keys := make([]sda.SignedEncryptionKey, 0, len(ids))
	for _, raw := range ids {
		id, err := sda.ParseEncryptionKeyID(raw)
		if err != nil {
			continue
		}
		key, ok, err := d.GetEncryptionKey(id)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, key)
		}
	}
	return sda.GroupCandidates(keys), nil
}

// cachedGet serves id from the cache, falling back to s and filling the
// cache on a miss. Entries are write-once so the cache never goes stale.
func (d *Directory) cachedGet(s *store, prefix, id string, v interface{}) (bool, error) {
	cacheKey := prefix + id
	data, err := d.cache.Get(cacheKey)
	switch {
	case err == nil:
	case errors.Is(err, bigcache.ErrEntryNotFound):
		var ok bool
		data, ok, err = s.getRaw(id)
		if err != nil || !ok {
			return false, err
		}
		// best effort
		_ = d.cache.Set(cacheKey, data)
	default:
		return false, unavailable(errors.Wrapf(err, "cache lookup %s", cacheKey))
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, unavailable(errors.Wrapf(err, "decode %s", id))
	}
	return true, nil
}
