package scheduler

import (
	"context"
	"log/slog"
)

// ScheduledPublisher は公開予定時刻を過ぎたブログを公開する。blog.Serviceが実装する。
type ScheduledPublisher interface {
	PublishDueScheduled(ctx context.Context) (int, error)
}

// TrendingRecomputer は公開済みブログのトレンドスコアを再計算する。blog.Serviceが実装する。
type TrendingRecomputer interface {
	RecomputeTrending(ctx context.Context) (int64, error)
}

// SearchReindexer は古くなった検索インデックスを再構築する。blog.Serviceが実装する。
type SearchReindexer interface {
	ReindexSearch(ctx context.Context) (int, error)
}

// NewPublishJob は予約公開ジョブを作る。
func NewPublishJob(publisher ScheduledPublisher, logger *slog.Logger) Job {
	if logger == nil {
		logger = slog.Default()
	}
	return NewJob("publish_scheduled", func(ctx context.Context) error {
		n, err := publisher.PublishDueScheduled(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("予約ブログを公開しました", slog.Int("published_count", n))
		}
		return nil
	})
}

// NewTrendingJob はトレンドスコア再計算ジョブを作る。
func NewTrendingJob(recomputer TrendingRecomputer, logger *slog.Logger) Job {
	if logger == nil {
		logger = slog.Default()
	}
	return NewJob("recompute_trending", func(ctx context.Context) error {
		n, err := recomputer.RecomputeTrending(ctx)
		if err != nil {
			return err
		}
		logger.Debug("トレンドスコアを再計算しました", slog.Int64("updated_count", n))
		return nil
	})
}

// NewReindexJob は検索インデックス再構築ジョブを作る。
// インデックスが最新なら何もしない。
func NewReindexJob(reindexer SearchReindexer, logger *slog.Logger) Job {
	if logger == nil {
		logger = slog.Default()
	}
	return NewJob("reindex_search", func(ctx context.Context) error {
		n, err := reindexer.ReindexSearch(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("検索インデックスを再構築しました", slog.Int("indexed_count", n))
		}
		return nil
	})
}
