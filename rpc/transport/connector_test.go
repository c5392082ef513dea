package transport

import (
	"context"
	"sync"
	"testing"

	"github.com/cachelink/cachelink-go/rpc/common"
	"github.com/cachelink/cachelink-go/rpc/discovery"
)

// fakeDirectory is a scriptable in-memory IDirectory
type fakeDirectory struct {
	mu           sync.Mutex
	addresses    []discovery.Address
	afterRefresh []discovery.Address // installed by Refresh when set
	refreshCalls int
	generation   uint64
}

func (d *fakeDirectory) GetAddresses(string) []discovery.Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := make([]discovery.Address, len(d.addresses))
	copy(result, d.addresses)
	return result
}

func (d *fakeDirectory) GetGeneration() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

func (d *fakeDirectory) Refresh(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshCalls++
	if d.afterRefresh != nil {
		d.addresses = d.afterRefresh
		d.generation++
	}
	return nil
}

func (d *fakeDirectory) Close() {}

// recordingFactory records the addresses it was asked to connect to
type recordingFactory struct {
	mu        sync.Mutex
	addresses []string
	err       error
}

func (f *recordingFactory) Connect(_ context.Context, address string) (*Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addresses = append(f.addresses, address)
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func (f *recordingFactory) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]string, len(f.addresses))
	copy(result, f.addresses)
	return result
}

func fakeAddresses(addrs ...string) []discovery.Address {
	result := make([]discovery.Address, len(addrs))
	for i, addr := range addrs {
		result[i] = discovery.Address{SocketAddress: addr, Zone: "1a"}
	}
	return result
}

// TestConnectorRoundRobin verifies addresses are picked in rotation
func TestConnectorRoundRobin(t *testing.T) {
	directory := &fakeDirectory{addresses: fakeAddresses("a:1", "b:1", "c:1")}
	factory := &recordingFactory{}
	connector := NewDirectoryConnector(directory, factory, "1a")

	for i := 0; i < 6; i++ {
		if _, err := connector.Connect(context.Background()); err != nil {
			t.Fatalf("Connect %d failed: %v", i, err)
		}
	}

	want := []string{"a:1", "b:1", "c:1", "a:1", "b:1", "c:1"}
	got := factory.recorded()
	if len(got) != len(want) {
		t.Fatalf("Factory saw %d connects, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Connect %d went to %s, want %s", i, got[i], want[i])
		}
	}

	if directory.refreshCalls != 0 {
		t.Errorf("Unexpected out-of-band refreshes: %d", directory.refreshCalls)
	}
}

// TestConnectorEmptyTriggersRefresh verifies an empty view causes exactly
// one out-of-band refresh before connecting
func TestConnectorEmptyTriggersRefresh(t *testing.T) {
	directory := &fakeDirectory{afterRefresh: fakeAddresses("a:1")}
	factory := &recordingFactory{}
	connector := NewDirectoryConnector(directory, factory, "1a")

	if _, err := connector.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if directory.refreshCalls != 1 {
		t.Errorf("Refresh calls = %d, want 1", directory.refreshCalls)
	}
	if got := factory.recorded(); len(got) != 1 || got[0] != "a:1" {
		t.Errorf("Factory saw %v, want [a:1]", got)
	}
}

// TestConnectorNoAddresses verifies the typed error when the directory
// stays empty even after a refresh
func TestConnectorNoAddresses(t *testing.T) {
	directory := &fakeDirectory{}
	factory := &recordingFactory{}
	connector := NewDirectoryConnector(directory, factory, "1a")

	_, err := connector.Connect(context.Background())
	if err == nil {
		t.Fatal("Expected error, got none")
	}
	if !common.IsCode(err, common.ErrCNoAddresses) {
		t.Errorf("Expected no addresses code, got %v", err)
	}

	if directory.refreshCalls != 1 {
		t.Errorf("Refresh calls = %d, want 1", directory.refreshCalls)
	}
	if got := factory.recorded(); len(got) != 0 {
		t.Errorf("Factory called despite empty directory: %v", got)
	}
}

// TestConnectorPropagatesFactoryError verifies factory failures pass
// through unchanged
func TestConnectorPropagatesFactoryError(t *testing.T) {
	scripted := common.NewError(common.ErrCAuthRejected, "scripted rejection")
	directory := &fakeDirectory{addresses: fakeAddresses("a:1")}
	factory := &recordingFactory{err: scripted}
	connector := NewDirectoryConnector(directory, factory, "1a")

	_, err := connector.Connect(context.Background())
	if err != scripted {
		t.Errorf("Expected the factory error unchanged, got %v", err)
	}
}
