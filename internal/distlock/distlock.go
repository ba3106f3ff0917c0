// Package distlock is a Redis-backed named mutex used to serialize the
// demo's own startup (so that concurrent demo processes sharing one Redis
// instance print their stats blocks one at a time rather than interleaved)
// and is never used to guard the allocator's core engine — the global
// pool is explicitly process-local, not a resource shared across hosts.
//
// It is a SETNX-plus-Lua-renew mutex: instead of a package-level config
// singleton, each Mutex owns its own redis.Client and settings, set with
// Option functions at construction time.
package distlock

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCancelTime    = 1 * time.Second
	defaultExpiresTime   = 3 * time.Second
	defaultMaxOffsetTime = 10 * time.Millisecond
	defaultRetries       = 2
)

// Mutex is a single named distributed lock backed by Redis.
type Mutex struct {
	name       string
	client     *redis.Client
	nodeID     string
	cancelTime time.Duration
	expires    time.Duration
	maxOffset  time.Duration
	retries    int

	delayDone chan struct{}

	scriptMu   sync.Mutex
	delayHash  string
	releaseSHA string
}

// Option configures a Mutex at construction time.
type Option func(*Mutex)

// WithCancelTime bounds how long a single Redis round trip is allowed to
// take.
func WithCancelTime(d time.Duration) Option { return func(m *Mutex) { m.cancelTime = d } }

// WithExpiresTime sets the lock key's TTL, renewed automatically while held.
func WithExpiresTime(d time.Duration) Option { return func(m *Mutex) { m.expires = d } }

// WithMaxOffsetTime sets the initial retry backoff when the lock is held
// by someone else.
func WithMaxOffsetTime(d time.Duration) Option { return func(m *Mutex) { m.maxOffset = d } }

// WithRetries sets how many retries happen at one backoff level before it
// halves.
func WithRetries(n int) Option { return func(m *Mutex) { m.retries = n } }

// New constructs a named mutex against client. name is the Redis key used
// to represent the lock.
func New(client *redis.Client, name string, opts ...Option) (*Mutex, error) {
	nodeID, err := machineID()
	if err != nil {
		return nil, fmt.Errorf("distlock: determine node id: %w", err)
	}

	m := &Mutex{
		name:       name,
		client:     client,
		nodeID:     nodeID,
		cancelTime: defaultCancelTime,
		expires:    defaultExpiresTime,
		maxOffset:  defaultMaxOffsetTime,
		retries:    defaultRetries,
		delayDone:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Lock blocks until the lock is acquired, renewing its TTL in the
// background for as long as it is held.
func (m *Mutex) Lock(ctx context.Context) error {
	offset := m.maxOffset
	retries := 0
	for {
		ok, err := m.tryAcquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			go m.renewLoop()
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(offset):
		}

		retries++
		if retries >= m.retries {
			offset /= 2
			retries = 0
		}
	}
}

// TryLock attempts to acquire the lock once, without blocking or retrying.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	ok, err := m.tryAcquire(ctx)
	if ok {
		go m.renewLoop()
	}
	return ok, err
}

func (m *Mutex) tryAcquire(ctx context.Context) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, m.cancelTime)
	defer cancel()
	cmd := m.client.SetNX(cctx, m.name, m.nodeID, m.expires)
	return cmd.Val(), cmd.Err()
}

func (m *Mutex) renewLoop() {
	ticker := time.NewTicker(m.expires / 5)
	defer ticker.Stop()
	for {
		select {
		case <-m.delayDone:
			return
		case <-ticker.C:
			if err := m.renew(); err != nil {
				return
			}
		}
	}
}

const delayScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
else
	return -2
end
`

func (m *Mutex) renew() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.cancelTime)
	defer cancel()
	status, err := m.evalCached(ctx, delayScript, &m.delayHash)
	if err != nil {
		return err
	}
	if status < 0 {
		return fmt.Errorf("distlock: %s: renew failed with status %d", m.name, status)
	}
	return nil
}

const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`

// Unlock stops the background renewal and releases the lock if this
// mutex's node still owns it.
func (m *Mutex) Unlock(ctx context.Context) error {
	select {
	case m.delayDone <- struct{}{}:
	default:
	}
	_, err := m.evalCached(ctx, releaseScript, &m.releaseSHA)
	return err
}

func (m *Mutex) evalCached(ctx context.Context, script string, shaSlot *string) (int64, error) {
	m.scriptMu.Lock()
	sha := *shaSlot
	m.scriptMu.Unlock()

	args := []string{strconv.FormatInt(int64(m.expires.Milliseconds()), 10)}

	if sha != "" {
		cmd := m.client.EvalSha(ctx, sha, []string{m.name}, m.nodeID, args[0])
		if cmd.Err() == nil {
			return cmd.Int64()
		}
	}

	cmd := m.client.Eval(ctx, script, []string{m.name}, m.nodeID, args[0])
	if cmd.Err() != nil {
		return 0, cmd.Err()
	}

	sum := sha1.Sum([]byte(script))
	m.scriptMu.Lock()
	*shaSlot = fmt.Sprintf("%x", sum[:])
	m.scriptMu.Unlock()

	return cmd.Int64()
}

func machineID() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			return "", err
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if mac := iface.HardwareAddr.String(); mac != "" {
					return mac, nil
				}
			}
		}
	}
	return "", fmt.Errorf("distlock: no usable network interface found for node id")
}
