package config

import "time"

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			Transport:  TransportUnix,
			NamePrefix: "lucciefr",
		},
		Queue: QueueConfig{
			Capacity: 64,
		},
		Timing: TimingConfig{
			Tick:    Duration(500 * time.Millisecond),
			IOSlice: Duration(5 * time.Millisecond),
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}
