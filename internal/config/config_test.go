package config

import "testing"

func TestApplyEnvOverridesEveryField(t *testing.T) {
	t.Setenv("EXTENSION", "1001")
	t.Setenv("PASSWORD", "secret")
	t.Setenv("DISPLAY_NAME", "Alice")
	t.Setenv("SERVER", "pbx.example.com")
	t.Setenv("PORT", "5070")
	t.Setenv("BIND", "127.0.0.1")
	t.Setenv("ADVERTISE", "192.168.1.10")
	t.Setenv("LOGLEVEL", "debug")
	t.Setenv("LOGFILE", "/tmp/softphone.log")
	t.Setenv("HISTORY_DB", "/tmp/history.db")
	t.Setenv("AUDIO", "false")
	t.Setenv("RECORD_TONES", "/tmp/tones.ulaw")

	cfg := &Config{}
	applyEnv(cfg)

	if cfg.Extension != "1001" {
		t.Errorf("Extension = %q, want %q", cfg.Extension, "1001")
	}
	if cfg.Password != "secret" {
		t.Errorf("Password = %q, want %q", cfg.Password, "secret")
	}
	if cfg.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q, want %q", cfg.DisplayName, "Alice")
	}
	if cfg.Server != "pbx.example.com" {
		t.Errorf("Server = %q, want %q", cfg.Server, "pbx.example.com")
	}
	if cfg.Port != 5070 {
		t.Errorf("Port = %d, want %d", cfg.Port, 5070)
	}
	if cfg.BindAddr != "127.0.0.1" {
		t.Errorf("BindAddr = %q, want %q", cfg.BindAddr, "127.0.0.1")
	}
	if cfg.AdvertiseAddr != "192.168.1.10" {
		t.Errorf("AdvertiseAddr = %q, want %q", cfg.AdvertiseAddr, "192.168.1.10")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.LogFile != "/tmp/softphone.log" {
		t.Errorf("LogFile = %q, want %q", cfg.LogFile, "/tmp/softphone.log")
	}
	if cfg.HistoryDBPath != "/tmp/history.db" {
		t.Errorf("HistoryDBPath = %q, want %q", cfg.HistoryDBPath, "/tmp/history.db")
	}
	if cfg.AudioEnabled {
		t.Error("AudioEnabled = true, want false")
	}
	if cfg.ToneRecordPath != "/tmp/tones.ulaw" {
		t.Errorf("ToneRecordPath = %q, want %q", cfg.ToneRecordPath, "/tmp/tones.ulaw")
	}
}

func TestApplyEnvLeavesUnsetFieldsAlone(t *testing.T) {
	t.Setenv("EXTENSION", "")
	t.Setenv("ADVERTISE", "")
	t.Setenv("AUDIO", "")
	t.Setenv("RECORD_TONES", "")

	cfg := &Config{
		Extension:      "2000",
		AdvertiseAddr:  "10.0.0.5",
		AudioEnabled:   true,
		ToneRecordPath: "keep.ulaw",
	}
	applyEnv(cfg)

	if cfg.Extension != "2000" {
		t.Errorf("Extension = %q, want %q", cfg.Extension, "2000")
	}
	if cfg.AdvertiseAddr != "10.0.0.5" {
		t.Errorf("AdvertiseAddr = %q, want %q", cfg.AdvertiseAddr, "10.0.0.5")
	}
	if !cfg.AudioEnabled {
		t.Error("AudioEnabled = false, want true")
	}
	if cfg.ToneRecordPath != "keep.ulaw" {
		t.Errorf("ToneRecordPath = %q, want %q", cfg.ToneRecordPath, "keep.ulaw")
	}
}
