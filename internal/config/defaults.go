package config

const (
	defaultConfigPath       = "~/.config/aslreport/config.toml"
	projectConfigName       = "aslreport.toml"
	defaultServerBind       = "127.0.0.1:7587"
	defaultMaxUploadMB      = 64
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	defaultSuppressOnMajor  = true
	defaultExtendedReport   = true
)

// Default returns a Config populated with repository defaults. The artifact
// and log directories stay empty so normalize derives them from the final
// data directory.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir(),
		},
		Report: Report{
			SuppressOnMajor: defaultSuppressOnMajor,
			Extended:        defaultExtendedReport,
		},
		Server: Server{
			Bind:        defaultServerBind,
			MaxUploadMB: defaultMaxUploadMB,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
