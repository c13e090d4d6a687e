package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"streamline/logger"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type DefaultPaths struct {
	ConfigDir    string
	LogPathApp   string
	LogPathProxy string
	DBPath       string
	LegacyPath   string
	LogLevel     string
}

type Configuration struct {
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Server struct {
		Host string `mapstructure:"host"`
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Proxy struct {
		Port                  string        `mapstructure:"port"`
		ListenHost            string        `mapstructure:"listen_host"`
		CACertPath            string        `mapstructure:"ca_cert_path"`
		CAKeyPath             string        `mapstructure:"ca_key_path"`
		UpstreamSkipTLSVerify bool          `mapstructure:"upstream_skip_tls_verify"`
		HTTP2                 bool          `mapstructure:"http2"`
		ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"proxy"`
	Logging struct {
		Level        string `mapstructure:"level"`
		AppLogPath   string `mapstructure:"app_log_path"`
		ProxyLogPath string `mapstructure:"proxy_log_path"`
	} `mapstructure:"logging"`
	Update struct {
		CheckURL string        `mapstructure:"check_url"`
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"update"`
	Rules struct {
		LegacyPath string `mapstructure:"legacy_path"`
	} `mapstructure:"rules"`
}

const (
	DefaultProxyPort  = "12345"
	DefaultServerPort = "12346"
	DefaultCheckURL   = "https://blog.x2b.net/ver/flashgamestreamline.txt"
)

var AppConfig Configuration

var portPattern = regexp.MustCompile(`^\d{1,5}$`)

// ParsePort validates a user-supplied port: one to five ASCII digits in 1..65535.
func ParsePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !portPattern.MatchString(s) {
		return 0, fmt.Errorf("invalid port %q: must be 1-5 digits", s)
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q: must be between 1 and 65535", s)
	}
	return port, nil
}

func expandTilde(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// ExpandTilde is exported for the command layer.
func ExpandTilde(path string) (string, error) {
	return expandTilde(path)
}

func GetDefaultConfigPaths() DefaultPaths {
	var paths DefaultPaths
	userConfigDirBase, err := os.UserConfigDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not get user config dir: %v. Using current directory.\n", err)
		userConfigDirBase = "."
	}

	userConfigDir, err := expandTilde(userConfigDirBase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not expand tilde in user config dir '%s': %v. Using potentially literal path.\n", userConfigDirBase, err)
		userConfigDir = userConfigDirBase
	}

	paths.ConfigDir = filepath.Join(userConfigDir, "streamline")
	logDir := filepath.Join(paths.ConfigDir, "logs")

	paths.LogPathApp = filepath.Join(logDir, "app.log")
	paths.LogPathProxy = filepath.Join(logDir, "proxy.log")
	paths.DBPath = filepath.Join(paths.ConfigDir, "streamline.db")
	paths.LegacyPath = filepath.Join(paths.ConfigDir, "config_main.json")
	paths.LogLevel = "INFO"
	return paths
}

func setDefaults(v *viper.Viper, defaults DefaultPaths) {
	v.SetDefault("database.path", defaults.DBPath)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("proxy.port", DefaultProxyPort)
	v.SetDefault("proxy.listen_host", "")
	v.SetDefault("proxy.ca_cert_path", "")
	v.SetDefault("proxy.ca_key_path", "")
	v.SetDefault("proxy.upstream_skip_tls_verify", false)
	v.SetDefault("proxy.http2", true)
	v.SetDefault("proxy.shutdown_timeout", 5*time.Second)
	v.SetDefault("logging.level", defaults.LogLevel)
	v.SetDefault("logging.app_log_path", defaults.LogPathApp)
	v.SetDefault("logging.proxy_log_path", defaults.LogPathProxy)
	v.SetDefault("update.check_url", DefaultCheckURL)
	v.SetDefault("update.timeout", 15*time.Second)
	v.SetDefault("rules.legacy_path", defaults.LegacyPath)
}

// Load reads configuration into a fresh Configuration without touching globals or loggers.
func Load(cfgFile string) (Configuration, string, error) {
	var cfg Configuration
	v := viper.New()
	defaults := GetDefaultConfigPaths()
	setDefaults(v, defaults)

	if cfgFile != "" {
		expandedCfgFile, err := expandTilde(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not expand tilde in config file path '%s': %v. Trying original path.\n", cfgFile, err)
			expandedCfgFile = cfgFile
		}
		v.SetConfigFile(expandedCfgFile)
		v.SetConfigType("yaml")
	} else {
		v.AddConfigPath(defaults.ConfigDir)
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("STREAMLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configUsedMsg := "Using default/environment configuration."
	if err := v.ReadInConfig(); err == nil {
		configUsedMsg = fmt.Sprintf("Using config file: %s", v.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
		return cfg, "", fmt.Errorf("reading config file %s: %w", v.ConfigFileUsed(), err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, "", fmt.Errorf("unable to decode config into struct: %w", err)
	}

	for _, p := range []*string{&cfg.Database.Path, &cfg.Proxy.CACertPath, &cfg.Proxy.CAKeyPath,
		&cfg.Logging.AppLogPath, &cfg.Logging.ProxyLogPath, &cfg.Rules.LegacyPath} {
		expanded, err := expandTilde(*p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not expand tilde in '%s': %v.\n", *p, err)
			continue
		}
		*p = expanded
	}
	return cfg, configUsedMsg, nil
}

func Init(cfgFile string, flagAppLogPath, flagProxyLogPath, flagLogLevel string) error {
	cfg, configUsedMsg, err := Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Error loading configuration: %v\n", err)
		return err
	}
	AppConfig = cfg

	// Apply flag overrides
	if flagAppLogPath != "" {
		if expandedPath, err := expandTilde(flagAppLogPath); err != nil {
			AppConfig.Logging.AppLogPath = flagAppLogPath
		} else {
			AppConfig.Logging.AppLogPath = expandedPath
		}
	}
	if flagProxyLogPath != "" {
		if expandedPath, err := expandTilde(flagProxyLogPath); err != nil {
			AppConfig.Logging.ProxyLogPath = flagProxyLogPath
		} else {
			AppConfig.Logging.ProxyLogPath = expandedPath
		}
	}
	if flagLogLevel != "" {
		AppConfig.Logging.Level = strings.ToUpper(flagLogLevel)
	}

	if err := os.MkdirAll(GetDefaultConfigPaths().ConfigDir, 0750); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not create main config directory: %v\n", err)
	}

	// Initialize/Re-initialize loggers
	if err := logger.InitGlobalLoggers(AppConfig.Logging.AppLogPath, AppConfig.Logging.ProxyLogPath, AppConfig.Logging.Level); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to initialize global loggers with final config: %v\n", err)
		return fmt.Errorf("failed to initialize global loggers with final config: %w", err)
	}

	logger.Info(configUsedMsg)
	if flagAppLogPath != "" || flagProxyLogPath != "" || flagLogLevel != "" {
		logger.Info("Log path/level flags may have overridden config file/defaults.")
	}
	if AppConfig.Proxy.UpstreamSkipTLSVerify {
		logger.Warn("Proxy: TLS certificate verification for upstream requests is DISABLED.")
	}
	if AppConfig.Proxy.CACertPath == "" || AppConfig.Proxy.CAKeyPath == "" {
		logger.Info("Proxy: no CA configured, the built-in goproxy CA will sign intercepted certificates.")
	}

	logger.Debug("Final AppConfig Initialized: %+v", AppConfig)
	return nil
}

// ResolvePort picks the first non-empty candidate (flag, stored setting, config)
// and validates it.
func ResolvePort(candidates ...string) (int, error) {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return ParsePort(c)
		}
	}
	return ParsePort(DefaultProxyPort)
}
