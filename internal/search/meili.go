// Package search はMeilisearchによるブログ全文検索を提供する。
package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"github.com/hitoshi/blogflow/internal/model"
	"github.com/hitoshi/blogflow/internal/security"
)

const (
	blogIndex = "blogflow_blogs"
	// MaxHits は1回の検索で取得するIDの上限。
	MaxHits = 1000

	healthCheckInterval = 10 * time.Second
)

// ErrUnavailable はMeilisearchに到達できない場合に返す。
// 呼び出し側はSQL検索にフォールバックする。
var ErrUnavailable = errors.New("meilisearch unavailable")

// BlogDocument はインデックスに登録するブログの検索用表現。
type BlogDocument struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Excerpt     string   `json:"excerpt"`
	Content     string   `json:"content"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
	AuthorID    string   `json:"authorId"`
	PublishedAt int64    `json:"publishedAt,omitempty"`
}

// NewBlogDocument はブログから検索用ドキュメントを組み立てる。本文はテキストのみ。
func NewBlogDocument(b *model.Blog) BlogDocument {
	doc := BlogDocument{
		ID:       b.ID,
		Title:    b.Title,
		Excerpt:  b.Excerpt,
		Content:  security.PlainText(b.Content),
		Category: b.Category,
		Tags:     b.Tags,
		Status:   string(b.Status),
		AuthorID: b.AuthorID,
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if b.PublishedAt != nil {
		doc.PublishedAt = b.PublishedAt.Unix()
	}
	return doc
}

// Meili はMeilisearchのブログインデックスを扱う。
// 到達不能の間はSearchがErrUnavailableを返し、バックグラウンドで復旧を監視する。
// 起動直後と復旧後、書き込み失敗後はインデックスを古いとみなし、全件の再登録を要求する。
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	stale   atomic.Bool
	done    chan struct{}
	logger  *slog.Logger
}

// NewMeili はクライアントを生成し、到達可能ならインデックスを設定する。
// 初回接続に失敗してもエラーにはせず、ヘルスチェックで復旧を待つ。
func NewMeili(url, apiKey string, logger *slog.Logger) *Meili {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		done:   make(chan struct{}),
		logger: logger,
	}
	// 有効化前に作成されたブログはインデックスに無い
	m.stale.Store(true)

	if _, err := m.client.Health(); err != nil {
		logger.Warn("meilisearch unavailable", slog.String("url", url), slog.String("error", err.Error()))
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        blogIndex,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("create index failed (may already exist)", slog.String("index", blogIndex), slog.String("error", err.Error()))
	}

	index := m.client.Index(blogIndex)
	filterable := []interface{}{"status", "category", "tags", "authorId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("failed to update filterable attributes", slog.String("error", err.Error()))
	}
	searchable := []string{"title", "excerpt", "content", "tags"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("failed to update searchable attributes", slog.String("error", err.Error()))
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
				m.stale.Store(true)
			}
		}
	}
}

// Close はヘルスチェックを停止する。
func (m *Meili) Close() {
	close(m.done)
}

// Healthy はMeilisearchに到達可能かを返す。
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// NeedsReindex は全件の再登録が必要ならtrueを返し、要求を取り下げる。
// 再登録に失敗した場合、呼び出し側はMarkStaleで要求を戻す。
func (m *Meili) NeedsReindex() bool {
	if !m.healthy.Load() {
		return false
	}
	return m.stale.CompareAndSwap(true, false)
}

// MarkStale はインデックスが古いことを記録する。
func (m *Meili) MarkStale() {
	m.stale.Store(true)
}

// Search はクエリに一致するブログIDを関連度順に返す。
// 可視性の絞り込みは呼び出し側のSQLで行う。
func (m *Meili) Search(query string, limit int) ([]string, error) {
	if !m.healthy.Load() {
		return nil, ErrUnavailable
	}
	if limit <= 0 || limit > MaxHits {
		limit = MaxHits
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID:             blogIndex,
			Query:                query,
			Limit:                int64(limit),
			AttributesToRetrieve: []string{"id"},
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	ids := []string{}
	for _, result := range resp.Results {
		for _, hit := range result.Hits {
			if id := decodeString(hit, "id"); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// IndexBlog はブログを追加または更新する。
func (m *Meili) IndexBlog(b *model.Blog) error {
	return m.IndexBlogs([]*model.Blog{b})
}

// IndexBlogs はブログをまとめて追加または更新する。
func (m *Meili) IndexBlogs(blogs []*model.Blog) error {
	if !m.healthy.Load() {
		m.stale.Store(true)
		return ErrUnavailable
	}
	if len(blogs) == 0 {
		return nil
	}
	docs := make([]BlogDocument, 0, len(blogs))
	for _, b := range blogs {
		docs = append(docs, NewBlogDocument(b))
	}
	if _, err := m.client.Index(blogIndex).AddDocuments(docs, nil); err != nil {
		m.stale.Store(true)
		return fmt.Errorf("meilisearch index blogs: %w", err)
	}
	return nil
}

// DeleteBlog はブログをインデックスから削除する。
func (m *Meili) DeleteBlog(id string) error {
	if !m.healthy.Load() {
		m.stale.Store(true)
		return ErrUnavailable
	}
	if _, err := m.client.Index(blogIndex).DeleteDocument(id, nil); err != nil {
		m.stale.Store(true)
		return fmt.Errorf("meilisearch delete blog: %w", err)
	}
	return nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
