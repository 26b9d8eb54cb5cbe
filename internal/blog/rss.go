package blog

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/hitoshi/blogflow/internal/model"
)

// FeedSize はRSSに含める最新記事数。
const FeedSize = 20

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        rssGUID  `xml:"guid"`
	Description string   `xml:"description"`
	Author      string   `xml:"author,omitempty"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate,omitempty"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// FeedChannel はRSSチャンネルのメタ情報。
type FeedChannel struct {
	Title       string
	Description string
	// SiteURL は記事URLの基点。記事は {SiteURL}/blog/{slug}。
	SiteURL string
}

// WriteRSS は公開済みブログをRSS 2.0としてwに書き出す。
func WriteRSS(w io.Writer, channel FeedChannel, blogs []*model.Blog, now time.Time) error {
	doc := rssDocument{
		Version: "2.0",
		Channel: rssChannel{
			Title:         channel.Title,
			Link:          channel.SiteURL,
			Description:   channel.Description,
			LastBuildDate: now.UTC().Format(time.RFC1123Z),
			Items:         make([]rssItem, 0, len(blogs)),
		},
	}

	for _, b := range blogs {
		link := fmt.Sprintf("%s/blog/%s", channel.SiteURL, b.Slug)
		item := rssItem{
			Title:       b.Title,
			Link:        link,
			GUID:        rssGUID{Value: link, IsPermaLink: true},
			Description: b.Excerpt,
		}
		if b.Category != "" {
			item.Categories = append(item.Categories, b.Category)
		}
		item.Categories = append(item.Categories, b.Tags...)
		if b.Author != nil {
			item.Author = b.Author.Name
			if item.Author == "" {
				item.Author = b.Author.Username
			}
		}
		if b.PublishedAt != nil {
			item.PubDate = b.PublishedAt.UTC().Format(time.RFC1123Z)
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write rss header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode rss: %w", err)
	}
	return nil
}
