package flagnames

// define flag names as consts
// needs to be separate package to avoid recursive import error
const (
	EnvFile        string = "env-file"
	ManifestFile   string = "manifest"
	LogLevel       string = "log-level"
	DBFileLocation string = "db-file"

	TierTimeout  string = "tier-timeout"
	PollInterval string = "poll-interval"
	MaxAttempts  string = "max-attempts"

	LogsFollow     string = "follow"
	LogsTail       string = "tail"
	LogsTimestamps string = "timestamps"

	Describe string = "describe"

	StageRetries string = "stage-retries"
)
