package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cachelink/cachelink-go/rpc/common"
)

var (
	Logger = common.GetLogger("discovery")
)

// ----------------------------------------------------------------------------
// Types and Interface
// ----------------------------------------------------------------------------

// Address is one resolved cache endpoint tagged with its availability zone.
// Addresses are immutable; the directory hands out copies.
type Address struct {
	SocketAddress string // "ip:port" as returned by discovery
	Zone          string // availability zone id, e.g. "euc1-az1"
}

// IDirectory provides the current candidate endpoints of a cell.
type IDirectory interface {
	// GetAddresses returns the addresses of the given availability zone. If
	// the zone is empty or unknown, the union of all zones is returned. The
	// union is sorted by socket address so repeated calls iterate it in a
	// stable order.
	GetAddresses(zone string) []Address

	// GetGeneration returns the monotonic change counter. It increments by
	// exactly 1 whenever the resolved address set changes and never
	// otherwise.
	GetGeneration() uint64

	// Refresh resolves the endpoint set once, out of band of the background
	// task. A failure leaves the current snapshot untouched.
	Refresh(ctx context.Context) error

	// Close stops the background refresh task and waits for it to exit.
	// Safe to call multiple times.
	Close()
}

// NewDirectory creates the directory matching the configuration: the static
// variant when Discovery.StaticEndpoint is set, otherwise the HTTP variant.
func NewDirectory(config common.ClientConfig) (IDirectory, error) {
	if config.Discovery.StaticEndpoint != "" {
		return NewStaticDirectory(config.Discovery.StaticEndpoint)
	}
	return NewHTTPDirectory(config)
}

// ----------------------------------------------------------------------------
// HTTP Directory
// ----------------------------------------------------------------------------

// endpointEntry is one element of the discovery response body.
type endpointEntry struct {
	SocketAddress string `json:"socket_address"`
}

type httpDirectory struct {
	endpointURL string
	credential  string
	httpClient  *http.Client

	mutex      sync.RWMutex
	snapshot   map[string][]Address
	generation uint64

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewHTTPDirectory creates a directory that resolves endpoints from
// GET {Discovery.BaseURL}/endpoints and keeps them fresh on
// Discovery.RefreshIntervalSec. The initial resolution happens before the
// constructor returns; if it fails the directory starts empty and retries
// on the next tick.
func NewHTTPDirectory(config common.ClientConfig) (IDirectory, error) {
	base := strings.TrimSuffix(config.Discovery.BaseURL, "/")
	if base == "" {
		return nil, common.NewError(common.ErrCDiscovery, "discovery base URL is empty")
	}

	endpointURL := base + "/endpoints"
	if config.Discovery.PrivateEndpoints {
		endpointURL += "?private=true"
	}
	if _, err := url.ParseRequestURI(endpointURL); err != nil {
		return nil, common.NewErrorf(common.ErrCDiscovery, "invalid discovery URL %q: %v", endpointURL, err)
	}

	d := &httpDirectory{
		endpointURL: endpointURL,
		credential:  config.Credential,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		},
		snapshot: map[string][]Address{},
		stop:     make(chan struct{}),
	}

	// Populate the snapshot once before handing the directory out
	ctx, cancel := context.WithTimeout(context.Background(), d.httpClient.Timeout)
	defer cancel()
	if err := d.Refresh(ctx); err != nil {
		Logger.Warnf("initial endpoint refresh failed: %v", err)
	}

	if interval := config.Discovery.RefreshIntervalSec; interval > 0 {
		d.wg.Add(1)
		go d.refreshLoop(time.Duration(interval) * time.Second)
	}

	return d, nil
}

// refreshLoop refreshes the snapshot on a fixed interval until Close is
// called.
func (d *httpDirectory) refreshLoop(interval time.Duration) {
	defer d.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if err := d.Refresh(ctx); err != nil {
				Logger.Warnf("endpoint refresh failed, serving stale snapshot: %v", err)
			}
			cancel()
		}
	}
}

// Refresh implements IDirectory.
func (d *httpDirectory) Refresh(ctx context.Context) error {
	resolved, err := d.fetchEndpoints(ctx)
	if err != nil {
		common.DiscoveryRefreshFailed.Inc()
		return err
	}
	common.DiscoveryRefreshOK.Inc()

	d.mutex.Lock()
	defer d.mutex.Unlock()

	// The generation tracks set membership only. A reorder, or the same
	// addresses shuffled across zone keys, must not bump it.
	if sameAddressSet(d.snapshot, resolved) {
		return nil
	}

	d.snapshot = resolved
	d.generation++
	common.DiscoveryGeneration.Inc()
	Logger.Infof("endpoint set changed (generation %d, %d zones)", d.generation, len(resolved))
	return nil
}

// fetchEndpoints performs one discovery request and parses the response.
func (d *httpDirectory) fetchEndpoints(ctx context.Context) (map[string][]Address, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpointURL, nil)
	if err != nil {
		return nil, common.NewErrorf(common.ErrCDiscovery, "building discovery request: %v", err)
	}
	req.Header.Set("authorization", d.credential)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, common.NewErrorf(common.ErrCDiscovery, "requesting %s: %v", d.endpointURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, common.NewErrorf(common.ErrCDiscovery, "discovery returned status %d", resp.StatusCode)
	}

	var body map[string][]endpointEntry
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, common.NewErrorf(common.ErrCDiscovery, "decoding discovery response: %v", err)
	}

	resolved := make(map[string][]Address, len(body))
	for zone, entries := range body {
		addrs := make([]Address, 0, len(entries))
		for _, entry := range entries {
			if entry.SocketAddress == "" {
				continue
			}
			addrs = append(addrs, Address{SocketAddress: entry.SocketAddress, Zone: zone})
		}
		if len(addrs) > 0 {
			resolved[zone] = addrs
		}
	}
	return resolved, nil
}

// GetAddresses implements IDirectory.
func (d *httpDirectory) GetAddresses(zone string) []Address {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if zone != "" {
		if addrs := d.snapshot[zone]; len(addrs) > 0 {
			result := make([]Address, len(addrs))
			copy(result, addrs)
			return result
		}
	}

	// Union of all zones, sorted for a stable iteration order
	var result []Address
	for _, addrs := range d.snapshot {
		result = append(result, addrs...)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SocketAddress < result[j].SocketAddress
	})
	return result
}

// GetGeneration implements IDirectory.
func (d *httpDirectory) GetGeneration() uint64 {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.generation
}

// Close implements IDirectory.
func (d *httpDirectory) Close() {
	d.closeOnce.Do(func() {
		close(d.stop)
		d.wg.Wait()
	})
}

// ----------------------------------------------------------------------------
// Set comparison
// ----------------------------------------------------------------------------

// flatAddressSet collects all socket addresses of a snapshot, ignoring zone
// assignment and ordering.
func flatAddressSet(snapshot map[string][]Address) map[string]struct{} {
	set := make(map[string]struct{})
	for _, addrs := range snapshot {
		for _, addr := range addrs {
			set[addr.SocketAddress] = struct{}{}
		}
	}
	return set
}

// sameAddressSet reports whether two snapshots resolve to the same flat set
// of socket addresses.
func sameAddressSet(a, b map[string][]Address) bool {
	setA, setB := flatAddressSet(a), flatAddressSet(b)
	if len(setA) != len(setB) {
		return false
	}
	for addr := range setA {
		if _, ok := setB[addr]; !ok {
			return false
		}
	}
	return true
}
