package config

import (
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		wantPanic bool
	}{
		{
			name:  "variable set",
			key:   "MARKY_TEST_VAR",
			value: "test_value",
		},
		{
			name:      "variable not set",
			key:       "MARKY_TEST_VAR_MISSING",
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestRequireEnvInt(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		expected  int
		wantPanic bool
	}{
		{name: "valid integer", value: "42", expected: 42},
		{name: "invalid integer", value: "not_a_number", wantPanic: true},
		{name: "missing variable", value: "", wantPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MARKY_TEST_INT", tt.value)

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnvInt() should have panicked")
					}
				}()
			}

			result := requireEnvInt("MARKY_TEST_INT")
			if !tt.wantPanic && result != tt.expected {
				t.Errorf("requireEnvInt() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a.example.com", []string{"a.example.com"}},
		{` "a.example.com" , 'b.example.com',, `, []string{"a.example.com", "b.example.com"}},
	}

	for _, tt := range tests {
		got := splitAndTrim(tt.in)
		if len(got) != len(tt.want) {
			t.Fatalf("splitAndTrim(%q) = %v, want %v", tt.in, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"valid", "90s", 90 * time.Second},
		{"invalid falls back", "soon", time.Minute},
		{"unset falls back", "", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MARKY_TEST_DURATION", tt.value)
			if got := mustDuration("MARKY_TEST_DURATION", time.Minute); got != tt.want {
				t.Errorf("mustDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"0", true, false},
		{"maybe", true, true},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Setenv("MARKY_TEST_BOOL", tt.value)
		if got := mustBool("MARKY_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("mustBool(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MARKY_BACKEND", "")
	t.Setenv("MARKY_DATA_DIR", "/tmp/marky")
	t.Setenv("MARKY_LOG_LEVEL", "info")

	cfg := Load()
	if cfg.Backend != "local" {
		t.Errorf("Backend = %q, want local", cfg.Backend)
	}
	if cfg.LocalDir != "/tmp/marky" {
		t.Errorf("LocalDir = %q", cfg.LocalDir)
	}
	if cfg.AuthDBPath != "/tmp/marky/auth.db" {
		t.Errorf("AuthDBPath = %q", cfg.AuthDBPath)
	}
	if !cfg.StrictDelete {
		t.Error("StrictDelete should default to true")
	}
	if cfg.SessionTTL != 7*24*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.RedisAddr != "" {
		t.Error("redis settings are only read for the redis backend")
	}
}

func TestLoadRedisBackend(t *testing.T) {
	t.Setenv("MARKY_BACKEND", "Redis")
	t.Setenv("MARKY_REDIS_ADDR", "localhost:6379")
	t.Setenv("MARKY_REDIS_DB", "2")
	t.Setenv("MARKY_REDIS_PASSWORD", "s3cret")
	t.Setenv("MARKY_LOG_LEVEL", "info")

	cfg := Load()
	if cfg.Backend != "redis" || cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 2 {
		t.Errorf("unexpected redis config: %+v", cfg.Redacted())
	}
	if red := cfg.Redacted(); red.RedisPassword == "s3cret" {
		t.Error("Redacted() leaked the password")
	}
}

func TestLoadRedisRequiresPassword(t *testing.T) {
	t.Setenv("MARKY_BACKEND", "redis")
	t.Setenv("MARKY_REDIS_ADDR", "localhost:6379")
	t.Setenv("MARKY_REDIS_DB", "0")
	t.Setenv("MARKY_REDIS_PASSWORD", "")
	t.Setenv("MARKY_REDIS_PASSWORD_REQUIRED", "true")

	defer func() {
		if r := recover(); r == nil {
			t.Error("Load() should panic without a redis password")
		}
	}()
	Load()
}

func TestLoadUnknownBackend(t *testing.T) {
	t.Setenv("MARKY_BACKEND", "postgres")

	defer func() {
		if r := recover(); r == nil {
			t.Error("Load() should panic on an unknown backend")
		}
	}()
	Load()
}
