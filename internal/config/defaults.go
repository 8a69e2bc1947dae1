package config

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

const (
	defaultConfigPath            = "~/.config/lbfeed/config.toml"
	defaultDataDir               = "~/.local/share/lbfeed"
	defaultLogDir                = "~/.local/share/lbfeed/logs"
	defaultSQLiteName            = "releases.db"
	defaultBind                  = "127.0.0.1:8000"
	defaultFeedDays              = 30
	defaultMaxFeedDays           = 90
	defaultRequestTimeoutSeconds = 0
	defaultRedisAddr             = "127.0.0.1:6379"
	defaultRedisKeyPrefix        = "lbfeed:release:"
	defaultMemoSize              = 2048
	defaultMusicBrainzBaseURL    = "https://musicbrainz.org/ws/2/"
	defaultMinIntervalMillis     = 1000
	minIntervalMillis            = 1000
	defaultHTTPTimeoutSeconds    = 30
	defaultListenBrainzBaseURL   = "https://api.listenbrainz.org/1/"
	defaultListenBrainzFrontURL  = "https://listenbrainz.org/"
	defaultCoverArtURL           = "https://coverartarchive.org/release/"
	defaultUserAgent             = "lbfeed/dev ( https://github.com/lbfeed/lbfeed )"
	defaultQueueCapacity         = 100
	defaultLogFormat             = "auto"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind:                  defaultBind,
			DefaultDays:           defaultFeedDays,
			MaxDays:               defaultMaxFeedDays,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Store: Store{
			Backend:        BackendSQLite,
			RedisAddr:      defaultRedisAddr,
			RedisKeyPrefix: defaultRedisKeyPrefix,
			MemoSize:       defaultMemoSize,
		},
		MusicBrainz: MusicBrainz{
			BaseURL:            defaultMusicBrainzBaseURL,
			UserAgent:          defaultUserAgent,
			MinIntervalMillis:  defaultMinIntervalMillis,
			HTTPTimeoutSeconds: defaultHTTPTimeoutSeconds,
		},
		ListenBrainz: ListenBrainz{
			BaseURL:            defaultListenBrainzBaseURL,
			FrontURL:           defaultListenBrainzFrontURL,
			CoverArtURL:        defaultCoverArtURL,
			UserAgent:          defaultUserAgent,
			HTTPTimeoutSeconds: defaultHTTPTimeoutSeconds,
		},
		Resolver: Resolver{
			QueueCapacity: defaultQueueCapacity,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
