package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultLogLevel = "info"
	DefaultDBPath   = "checkin.db"

	DefaultAIProvider        = "gemini"
	DefaultAITimeout         = 30 * time.Second
	DefaultBreakerFailures   = 5
	DefaultBreakerTimeout    = time.Minute
	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultGeminiTemperature = 0.7
	DefaultGeminiMaxRetries  = 2
	DefaultGeminiRetryDelay  = 2 // seconds
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenAIModel       = "gpt-4o-mini"
	DefaultOpenAITemperature = 0.7

	DefaultCheckinInterval      = time.Hour
	DefaultCheckinRetry         = 5 * time.Minute
	DefaultCheckinInitialDelay  = time.Hour
	DefaultMinDelayMinutes      = 5
	DefaultMaxDelayMinutes      = 1440
	DefaultFallbackDelayMinutes = 60
	DefaultTimezone             = "UTC"
	DefaultMaxConcurrentSends   = 4
	DefaultSendTimeout          = 10 * time.Second
	DefaultDownloadTimeout      = 30 * time.Second
	DefaultStoreTimeout         = 5 * time.Second

	DefaultJournalRoot = "data"

	DefaultCheckinPollInterval = time.Minute
	DefaultMaintenanceSchedule = "0 0 4 * * *" // daily at 04:00:00
)

// DefaultMessages holds the user-facing strings used when none are configured.
var DefaultMessages = MessagesConfig{
	Welcome: "👋 Hi! Tell me what you're up to and I'll keep your journal. " +
		"I'll check in now and then. Start a message with \"food:\" to log a meal.",
	Help: "Send me what you're doing and I'll log it.\n" +
		"food: <what you ate> logs a meal. Reply to my questions to fill in details.\n" +
		"/timezone <Area/City> sets your timezone.",
	GeneralError:     "❌ Something went wrong. Please try again later.",
	FallbackReply:    "📝 Noted. I'll check in with you later.",
	SaveFailedSuffix: "\n\n⚠️ I couldn't save this entry, so it may be missing from your journal.",
	DownloadFailed:   "😕 Sorry, I couldn't download that photo. Please send it again.",
	CheckinFallback:  "👋 Hey! What are you up to right now?",
	TimezoneUsage:    "Usage: /timezone Europe/Berlin",
	TimezoneUpdated:  "🕑 Timezone set to %s.",
	TimezoneInvalid:  "🤔 I don't know the timezone %q. Use a name like Europe/Berlin.",
}

// setDefaults registers every key with viper so BOT_* environment
// variables can override keys that are absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("ai.provider", DefaultAIProvider)
	v.SetDefault("ai.timeout", DefaultAITimeout)
	v.SetDefault("ai.breaker_max_failures", DefaultBreakerFailures)
	v.SetDefault("ai.breaker_open_timeout", DefaultBreakerTimeout)
	v.SetDefault("ai.gemini.api_key", "")
	v.SetDefault("ai.gemini.model_name", DefaultGeminiModel)
	v.SetDefault("ai.gemini.temperature", DefaultGeminiTemperature)
	v.SetDefault("ai.gemini.system_instruction", "")
	v.SetDefault("ai.gemini.max_retries", DefaultGeminiMaxRetries)
	v.SetDefault("ai.gemini.retry_delay_seconds", DefaultGeminiRetryDelay)
	v.SetDefault("ai.openai.api_key", "")
	v.SetDefault("ai.openai.base_url", DefaultOpenAIBaseURL)
	v.SetDefault("ai.openai.model", DefaultOpenAIModel)
	v.SetDefault("ai.openai.temperature", DefaultOpenAITemperature)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.allowed_user_ids", []int64{})

	v.SetDefault("scheduler.tasks.checkin.enabled", true)
	v.SetDefault("scheduler.tasks.checkin.interval", DefaultCheckinPollInterval)
	v.SetDefault("scheduler.tasks.sql_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.sql_maintenance.schedule", DefaultMaintenanceSchedule)

	v.SetDefault("checkin.default_interval", DefaultCheckinInterval)
	v.SetDefault("checkin.retry_interval", DefaultCheckinRetry)
	v.SetDefault("checkin.initial_delay", DefaultCheckinInitialDelay)
	v.SetDefault("checkin.min_delay_minutes", DefaultMinDelayMinutes)
	v.SetDefault("checkin.max_delay_minutes", DefaultMaxDelayMinutes)
	v.SetDefault("checkin.fallback_delay_minutes", DefaultFallbackDelayMinutes)
	v.SetDefault("checkin.default_timezone", DefaultTimezone)
	v.SetDefault("checkin.max_concurrent_sends", DefaultMaxConcurrentSends)
	v.SetDefault("checkin.send_timeout", DefaultSendTimeout)
	v.SetDefault("checkin.download_timeout", DefaultDownloadTimeout)
	v.SetDefault("checkin.store_timeout", DefaultStoreTimeout)

	v.SetDefault("journal.root_dir", DefaultJournalRoot)

	v.SetDefault("messages.welcome", DefaultMessages.Welcome)
	v.SetDefault("messages.help", DefaultMessages.Help)
	v.SetDefault("messages.general_error", DefaultMessages.GeneralError)
	v.SetDefault("messages.fallback_reply", DefaultMessages.FallbackReply)
	v.SetDefault("messages.save_failed_suffix", DefaultMessages.SaveFailedSuffix)
	v.SetDefault("messages.download_failed", DefaultMessages.DownloadFailed)
	v.SetDefault("messages.checkin_fallback", DefaultMessages.CheckinFallback)
	v.SetDefault("messages.timezone_usage", DefaultMessages.TimezoneUsage)
	v.SetDefault("messages.timezone_updated", DefaultMessages.TimezoneUpdated)
	v.SetDefault("messages.timezone_invalid", DefaultMessages.TimezoneInvalid)
}
