package bus

import "github.com/scalytics/threadwatch/internal/config"

// New selects an EventBus implementation per cfg.Bus.Driver. "kafka"
// requires at least one broker; any other value (including the empty
// string) falls back to the in-process memory bus.
func New(cfg config.BusConfig) EventBus {
	if cfg.Driver == "kafka" && len(cfg.Brokers) > 0 {
		return NewKafkaBus(cfg.Brokers, "threadwatch-workers")
	}
	return NewMemoryBus()
}
