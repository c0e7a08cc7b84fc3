package authsession

import "sync"

var (
	defaultMu    sync.Mutex
	defaultStore *Store
)

// Default returns the process-wide Store, building it from [LoadConfig] on
// first use. Later calls return the same instance so backend connections are
// reused. A failed build is not memoized; the error is returned and the next
// call tries again.
func Default() (*Store, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultStore != nil {
		return defaultStore, nil
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	store, err := New().WithConfig(cfg).Build()
	if err != nil {
		return nil, err
	}
	defaultStore = store
	return defaultStore, nil
}

// SetDefault installs an explicitly built store as the process default,
// closing the previous one.
func SetDefault(store *Store) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	var err error
	if defaultStore != nil && defaultStore != store {
		err = defaultStore.Close()
	}
	defaultStore = store
	return err
}

// ResetDefault closes and forgets the process default. Tests call it to
// isolate package-level state.
func ResetDefault() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultStore == nil {
		return nil
	}
	err := defaultStore.Close()
	defaultStore = nil
	return err
}
