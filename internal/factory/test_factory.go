package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/dicemeister/internal/config"
	"github.com/mcoot/dicemeister/internal/dependencies/mocks"
	"github.com/mcoot/dicemeister/internal/storage/memory"
	"github.com/mcoot/dicemeister/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// TestConfig returns a configuration suited to tests: in-memory storage,
// the cheapest bcrypt cost and a quiet liveness probe
func TestConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Storage.Type = config.StorageMemory
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Match.PingInterval = time.Hour
	cfg.Match.RetryInterval = 10 * time.Millisecond
	return cfg
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Each option may adjust the configuration before wiring.
func NewTestApp(opts ...func(*config.Config)) *TestApp {
	cfg := TestConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app, err := newWithDependencies(cfg, memory.New(), mockClock, mockRandom, testutil.NopLogger())
	if err != nil {
		panic(err)
	}

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
