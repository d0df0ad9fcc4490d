package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
)

// Config holds the softphone configuration
type Config struct {
	// Account settings
	Extension   string
	Password    string
	DisplayName string
	Server      string // Registrar address, host or host:port

	// SIP settings
	Port          int
	BindAddr      string // Address to bind for listening
	AdvertiseAddr string // Address to advertise in SIP headers

	// Logging
	LogLevel string
	LogFile  string // Rotating log file path, empty disables file output

	// Storage
	HistoryDBPath string // SQLite file backing the call history

	// Audio
	AudioEnabled   bool   // Play tones on the system audio device
	ToneRecordPath string // Optional mu-law capture of everything played
}

// Load loads configuration from command line flags and environment variables
func Load() *Config {
	cfg := &Config{}

	// Define flags
	flag.StringVar(&cfg.Extension, "extension", "", "SIP account extension (required)")
	flag.StringVar(&cfg.Password, "password", "", "SIP account password")
	flag.StringVar(&cfg.DisplayName, "name", "", "Display name for outgoing calls")
	flag.StringVar(&cfg.Server, "server", "", "SIP registrar address (required)")
	flag.IntVar(&cfg.Port, "port", 5060, "Local SIP port")
	flag.StringVar(&cfg.BindAddr, "bind", "0.0.0.0", "SIP bind address")
	flag.StringVar(&cfg.AdvertiseAddr, "advertise", "", "Address to advertise in SIP headers (auto-detected if not set)")
	flag.StringVar(&cfg.LogLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFile, "logfile", "", "Log file path (stdout only if not set)")
	flag.StringVar(&cfg.HistoryDBPath, "history", "softphone.db", "Call history database path")
	flag.BoolVar(&cfg.AudioEnabled, "audio", true, "Play tones on the system audio device")
	flag.StringVar(&cfg.ToneRecordPath, "record-tones", "", "Write played tones to a mu-law file")

	flag.Parse()

	applyEnv(cfg)

	return cfg
}

// applyEnv overrides flag values with environment variables if set. Every
// flag has a matching variable.
func applyEnv(cfg *Config) {
	if extension := os.Getenv("EXTENSION"); extension != "" {
		cfg.Extension = extension
	}
	if password := os.Getenv("PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DISPLAY_NAME"); name != "" {
		cfg.DisplayName = name
	}
	if server := os.Getenv("SERVER"); server != "" {
		cfg.Server = server
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if bind := os.Getenv("BIND"); bind != "" {
		cfg.BindAddr = bind
	}
	if advertise := os.Getenv("ADVERTISE"); advertise != "" {
		cfg.AdvertiseAddr = advertise
	}
	// Validate and fallback to auto-detection if invalid
	if cfg.AdvertiseAddr == "" || !isValidAddress(cfg.AdvertiseAddr) {
		cfg.AdvertiseAddr = getPrimaryInterfaceIP()
	}
	if loglevel := os.Getenv("LOGLEVEL"); loglevel != "" {
		cfg.LogLevel = loglevel
	}
	if logfile := os.Getenv("LOGFILE"); logfile != "" {
		cfg.LogFile = logfile
	}
	if history := os.Getenv("HISTORY_DB"); history != "" {
		cfg.HistoryDBPath = history
	}
	if audio := os.Getenv("AUDIO"); audio != "" {
		if b, err := strconv.ParseBool(audio); err == nil {
			cfg.AudioEnabled = b
		}
	}
	if record := os.Getenv("RECORD_TONES"); record != "" {
		cfg.ToneRecordPath = record
	}
}

// Validate checks that required settings are present
func (c *Config) Validate() error {
	if c.Extension == "" {
		return fmt.Errorf("extension is required (-extension flag or EXTENSION env)")
	}
	if c.Server == "" {
		return fmt.Errorf("server is required (-server flag or SERVER env)")
	}
	return nil
}

// isValidAddress checks if the address is a valid IP or resolvable hostname
func isValidAddress(addr string) bool {
	if ip := net.ParseIP(addr); ip != nil {
		return true
	}
	if ips, err := net.LookupIP(addr); err == nil && len(ips) > 0 {
		return true
	}
	return false
}

// getPrimaryInterfaceIP detects the primary network interface IP address
func getPrimaryInterfaceIP() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}

	return "127.0.0.1"
}
