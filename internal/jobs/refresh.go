package jobs

import (
	"log/slog"
	"time"

	"chatlytics/internal/analytics"
	"chatlytics/internal/chatbots"
	"chatlytics/internal/config"
	"chatlytics/internal/database"
	"chatlytics/internal/timeframe"
)

// SummaryRefreshJob recomputes the cached analytics summary for every
// registered chatbot so that dashboards and admin averages stay warm even
// when nobody has opened them recently.
type SummaryRefreshJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewSummaryRefreshJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *SummaryRefreshJob {
	return &SummaryRefreshJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run refreshes the analytics summary of every chatbot over the default
// reporting window. A failure for one chatbot is logged and skipped so that
// the rest still get refreshed.
func (j *SummaryRefreshJob) Run() error {
	db := j.dbManager.GetConnection()

	tf, err := timeframe.NewTrailingDays(j.cfg.DefaultTimeRangeDays, time.Now())
	if err != nil {
		return err
	}

	all, err := chatbots.GetAllChatbots(db)
	if err != nil {
		j.logger.Error("Failed to load chatbots for summary refresh", slog.Any("error", err))
		return err
	}

	if len(all) == 0 {
		j.logger.Debug("No chatbots registered, nothing to refresh")
		return nil
	}

	refreshed := 0
	for _, chatbot := range all {
		params := analytics.NewChatbotScopedQueryParams(tf, chatbot.APIKey)
		result, err := analytics.GetChatbotAnalytics(db, params)
		if err != nil {
			j.logger.Error("Failed to compute analytics during refresh",
				slog.Int("chatbotId", int(chatbot.ID)),
				slog.Any("error", err))
			continue
		}
		if err := analytics.UpsertSummary(j.logger, db, chatbot.ID, result); err != nil {
			j.logger.Error("Failed to store analytics summary",
				slog.Int("chatbotId", int(chatbot.ID)),
				slog.Any("error", err))
			continue
		}
		refreshed++
	}

	j.logger.Info("Refreshed analytics summaries",
		slog.Int("chatbots", len(all)),
		slog.Int("refreshed", refreshed),
		slog.Int("days", tf.Days))

	return nil
}
