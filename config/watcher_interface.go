package config

// Watcher is what the server needs from a configuration source: the current
// value and a stream of reloads.
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}
