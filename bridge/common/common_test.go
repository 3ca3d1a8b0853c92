package common

import (
	"github.com/lni/dragonboat/v4/logger"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestConfigValidate tests that invalid settings are reported instead of failing later
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{"Defaults", func(c *Config) {}, ""},
		{"LogLevelWarn", func(c *Config) { c.LogLevel = "warn" }, ""},
		{"LogLevelUpperCase", func(c *Config) { c.LogLevel = "DEBUG" }, ""},
		{"LogLevelUnknown", func(c *Config) { c.LogLevel = "verbose" }, `invalid log level "verbose"`},
		{"LogLevelEmpty", func(c *Config) { c.LogLevel = "" }, "invalid log level"},
		{"Transport", func(c *Config) { c.Transport = "udp" }, `invalid transport "udp"`},
		{"Endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint must not be empty"},
		{"TickInterval", func(c *Config) { c.TickInterval = 0 }, "tick interval must be positive"},
		{"MetricsPath", func(c *Config) { c.MetricsPath = "metrics" }, "must start with /"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig(RoleRenderer)
			tt.modify(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestLookupLogLevel tests the level names accepted by the log configuration
func TestLookupLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  logger.LogLevel
		ok    bool
	}{
		{"debug", logger.DEBUG, true},
		{"info", logger.INFO, true},
		{"warn", logger.WARNING, true},
		{"warning", logger.WARNING, true},
		{"Error", logger.ERROR, true},
		{"verbose", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, ok := LookupLogLevel(tt.level)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("LookupLogLevel(%q) = %v, %v; want %v, %v", tt.level, got, ok, tt.want, tt.ok)
			}
		})
	}
}

// TestLogHooks tests that hooks see warn and error lines and may change the hook set
// while they run
func TestLogHooks(t *testing.T) {
	l := CreateLogger("hooks/test")
	l.SetLevel(logger.CRITICAL)

	var mu sync.Mutex
	var lines []string
	record := func(level LogLevelName, pkg, message string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, string(level)+" "+pkg+" "+message)
	}

	t.Run("WarnAndError", func(t *testing.T) {
		remove := AddLogHook(record)
		l.Infof("not hooked")
		l.Warningf("first %d", 1)
		l.Errorf("second")
		remove()
		l.Errorf("after remove")

		mu.Lock()
		defer mu.Unlock()
		want := []string{"warn hooks/test first 1", "error hooks/test second"}
		if strings.Join(lines, "|") != strings.Join(want, "|") {
			t.Errorf("Unexpected hooked lines %q, want %q", lines, want)
		}
	})

	t.Run("ChangeHooksFromHook", func(t *testing.T) {
		done := make(chan struct{})
		go func() {
			defer close(done)
			var remove func()
			remove = AddLogHook(func(LogLevelName, string, string) {
				// a hook removing itself and adding another one must not deadlock
				remove()
				AddLogHook(func(LogLevelName, string, string) {})()
			})
			l.Warningf("reentrant")
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("log hook changing the hook set deadlocked")
		}
	})

	t.Run("BlockedHook", func(t *testing.T) {
		release := make(chan struct{})
		entered := make(chan struct{})
		var once sync.Once
		remove := AddLogHook(func(LogLevelName, string, string) {
			once.Do(func() { close(entered) })
			<-release
		})
		go l.Errorf("stalls in hook")
		<-entered

		// registering and removing hooks goes on while a hook blocks
		done := make(chan struct{})
		go func() {
			AddLogHook(func(LogLevelName, string, string) {})()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("AddLogHook waited for a blocked hook")
		}
		remove()
		close(release)
	})
}

// TestArrayHelpers tests the array argument helpers
func TestArrayHelpers(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		wire  string
	}{
		{"Empty", []string{}, ""},
		{"Single", []string{"a"}, "a"},
		{"Multiple", []string{"a", "", "c"}, "a\x03\x03c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinArray(tt.items); got != tt.wire {
				t.Errorf("JoinArray(%q) = %q, want %q", tt.items, got, tt.wire)
			}
			got := SplitArray(tt.wire)
			if strings.Join(got, ",") != strings.Join(tt.items, ",") || len(got) != len(tt.items) {
				t.Errorf("SplitArray(%q) = %q, want %q", tt.wire, got, tt.items)
			}
		})
	}
}
