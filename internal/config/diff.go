package config

import "reflect"

// ConfigDiff describes what changed between two configs. Only the log level
// can be hot-reloaded; the remaining flags exist so the caller can tell the
// operator a restart is needed.
type ConfigDiff struct {
	LogLevelChanged   bool
	NewLogLevel       LogLevel
	ListenAddrChanged bool
	ProvidersChanged  bool
	StoreChanged      bool
	CaptureChanged    bool
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d != ConfigDiff{}
}

// RequiresRestart reports whether any changed section cannot be applied to a
// running server.
func (d ConfigDiff) RequiresRestart() bool {
	return d.ListenAddrChanged || d.ProvidersChanged || d.StoreChanged || d.CaptureChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.ListenAddrChanged = true
	}

	// ProviderEntry holds an Options map, so plain comparison is not enough.
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.ProvidersChanged = true
	}
	if old.Store != new.Store {
		d.StoreChanged = true
	}
	if old.Capture != new.Capture {
		d.CaptureChanged = true
	}

	return d
}
