package platform

import (
	"fmt"
	"sort"
	"sync"
)

// Options carry everything a driver needs to build a client for one
// account.
type Options struct {
	Phone      string
	APIID      string
	APIHash    string
	SessionDir string
}

// Factory builds a Client for one account.
type Factory func(Options) (Client, error)

var (
	driversMu sync.Mutex
	drivers   = make(map[string]Factory)
)

// RegisterDriver makes a platform driver available under name. Real
// protocol drivers are linked in by the binary that needs them; the
// built-in "fake" driver exists for local development.
func RegisterDriver(name string, f Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[name]; dup {
		panic("platform: driver registered twice: " + name)
	}
	drivers[name] = f
}

// Drivers lists the registered driver names.
func Drivers() []string {
	driversMu.Lock()
	defer driversMu.Unlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient builds a client with the named driver.
func NewClient(driver string, o Options) (Client, error) {
	driversMu.Lock()
	f, ok := drivers[driver]
	driversMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown platform driver %q (registered: %v)", driver, Drivers())
	}
	return f(o)
}

func init() {
	// Development driver: accepts any code, echoes sends back.
	RegisterDriver("fake", func(o Options) (Client, error) {
		return NewFake(Profile{ID: 1, Username: "dev", FirstName: "Dev"}, false), nil
	})
}
