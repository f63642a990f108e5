package envvar

// Prefix is prepended to every variable read by the config loader.
const Prefix = "MELO_"

const (
	// MeloEnv is the environment variable used to determine the environment.
	MeloEnv = "MELO_ENV"

	// MeloPreloadLanguages lists the languages warmed at startup. Set but empty
	// means no preload.
	MeloPreloadLanguages = "MELO_PRELOAD_LANGUAGES"

	// MeloLogFile is the environment variable used to set the rotating log file path.
	// An empty value disables file logging.
	MeloLogFile = "MELO_LOG_FILE"
)
