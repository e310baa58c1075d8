// -----------------------------------------------------------------------
// Short-post extraction - browser thread expansion raced against HTTP
// fallbacks (syndication JSON, meta description, oEmbed)
// -----------------------------------------------------------------------

package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/models"
	"github.com/ternarybob/folio/internal/services/browser"
)

const (
	syndicationEndpoint = "https://cdn.syndication.twimg.com/tweet-result"
	oembedEndpoint      = "https://publish.twitter.com/oembed"
)

// collectPostsJS gathers the visible post text nodes on a thread page
const collectPostsJS = `Array.from(document.querySelectorAll('[data-testid="tweetText"]')).map(n => n.innerText)`

// ShortPostExtractor expands an x.com / twitter.com link into a chapter.
// The browser path can see the full thread; the HTTP fallbacks only ever
// see the head post, so the browser result wins when it found more than
// one distinct post.
type ShortPostExtractor struct {
	browser *browser.Handle
	client  *http.Client
	limiter *hostLimiter
	config  common.ExtractorConfig
	logger  arbor.ILogger
}

// NewShortPostExtractor creates a short-post extractor bound to the shared
// browser handle.
func NewShortPostExtractor(config common.ExtractorConfig, handle *browser.Handle, limiter *hostLimiter, logger arbor.ILogger) *ShortPostExtractor {
	return &ShortPostExtractor{
		browser: handle,
		client: &http.Client{
			Timeout: config.FallbackTimeout + time.Second,
		},
		limiter: limiter,
		config:  config,
		logger:  logger,
	}
}

// Extract runs the browser path and the fallback race concurrently and
// merges their results by preference.
func (e *ShortPostExtractor) Extract(ctx context.Context, rawURL string) (models.Chapter, error) {
	type browserResult struct {
		posts []string
		err   error
	}
	browserCh := make(chan browserResult, 1)
	go func() {
		posts, err := e.browserPosts(ctx, rawURL)
		browserCh <- browserResult{posts: posts, err: err}
	}()

	fallbackCh := make(chan string, 1)
	go func() {
		text, _ := raceFirst(ctx, []func(context.Context) (string, error){
			func(c context.Context) (string, error) { return e.syndicationText(c, rawURL) },
			func(c context.Context) (string, error) { return e.metaDescription(c, rawURL) },
			func(c context.Context) (string, error) { return e.oembedText(c, rawURL) },
		}, func(s string) bool { return strings.TrimSpace(s) != "" })
		fallbackCh <- text
	}()

	br := <-browserCh
	if br.err != nil {
		e.logger.Warn().Err(br.err).Str("url", rawURL).Msg("Browser thread expansion failed")
	}

	// A multi-post browser result is the only thing the fallbacks cannot
	// provide, so it short-circuits the preference order.
	if br.err == nil && len(br.posts) > 1 {
		return buildPostChapter(rawURL, br.posts), nil
	}

	fallback := strings.TrimSpace(<-fallbackCh)
	if fallback != "" {
		return buildPostChapter(rawURL, []string{fallback}), nil
	}
	if br.err == nil && len(br.posts) == 1 {
		return buildPostChapter(rawURL, br.posts), nil
	}
	if br.err != nil {
		return models.Chapter{}, fmt.Errorf("short post extraction failed: %w", br.err)
	}

	// Page loaded but showed no post text and no fallback answered
	return models.Chapter{
		Title:     postTitle(rawURL, 1),
		Content:   "<p>Unable to load this post.</p>",
		SourceURL: rawURL,
	}, nil
}

// browserPosts loads the page in a fresh tab and collects post text nodes,
// collapsing consecutive duplicates the page sometimes renders.
func (e *ShortPostExtractor) browserPosts(ctx context.Context, rawURL string) ([]string, error) {
	tabCtx, cancel, err := e.browser.NewTab(ctx, e.config.ShortPostTimeout)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var texts []string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.Evaluate(collectPostsJS, &texts),
	)
	if err != nil {
		return nil, err
	}

	var posts []string
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if len(posts) > 0 && posts[len(posts)-1] == text {
			continue
		}
		posts = append(posts, text)
	}
	return posts, nil
}

// syndicationText reads the head post from the public syndication endpoint
func (e *ShortPostExtractor) syndicationText(ctx context.Context, rawURL string) (string, error) {
	statusID := statusIDFromURL(rawURL)
	if statusID == "" {
		return "", fmt.Errorf("no status id in url")
	}

	endpoint := fmt.Sprintf("%s?id=%s&lang=en", syndicationEndpoint, url.QueryEscape(statusID))
	body, err := e.fetchFallback(ctx, endpoint)
	if err != nil {
		return "", err
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("parse syndication payload: %w", err)
	}
	return payload.Text, nil
}

// metaDescription scrapes the page's description meta tags, which carry
// the head post text even without JavaScript.
func (e *ShortPostExtractor) metaDescription(ctx context.Context, rawURL string) (string, error) {
	body, err := e.fetchFallback(ctx, rawURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	if content, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && content != "" {
		return html.UnescapeString(content), nil
	}
	if content, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && content != "" {
		return html.UnescapeString(content), nil
	}
	return "", fmt.Errorf("no description meta tag")
}

// oembedText asks the public oEmbed endpoint and strips the embed markup
func (e *ShortPostExtractor) oembedText(ctx context.Context, rawURL string) (string, error) {
	endpoint := fmt.Sprintf("%s?url=%s", oembedEndpoint, url.QueryEscape(rawURL))
	body, err := e.fetchFallback(ctx, endpoint)
	if err != nil {
		return "", err
	}

	var payload struct {
		HTML string `json:"html"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("parse oembed payload: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(payload.HTML))
	if err != nil {
		return "", fmt.Errorf("parse oembed html: %w", err)
	}
	return strings.TrimSpace(doc.Text()), nil
}

func (e *ShortPostExtractor) fetchFallback(ctx context.Context, endpoint string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.config.FallbackTimeout)
	defer cancel()

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid fallback url: %w", err)
	}
	if err := e.limiter.wait(fetchCtx, parsed.Hostname()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.config.UserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch fallback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch fallback: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxArticleBody))
}

// buildPostChapter renders posts as escaped blockquotes. PostCount feeds
// the complexity score one unit per post.
func buildPostChapter(rawURL string, posts []string) models.Chapter {
	var b strings.Builder
	words := 0
	for _, post := range posts {
		b.WriteString("<blockquote><p>")
		b.WriteString(html.EscapeString(post))
		b.WriteString("</p></blockquote>\n")
		words += len(strings.Fields(post))
	}
	return models.Chapter{
		Title:     postTitle(rawURL, len(posts)),
		Content:   b.String(),
		WordCount: words,
		PostCount: len(posts),
		SourceURL: rawURL,
	}
}

func postTitle(rawURL string, postCount int) string {
	if postCount > 1 {
		return models.TitleShortPostThread
	}
	if handle := HandleFromURL(rawURL); handle != "" {
		return "Post by @" + handle
	}
	return "X Post"
}

// HandleFromURL returns the account handle from a short-post URL path, or
// "" when the first path segment is a site page rather than an account.
func HandleFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return ""
	}
	handle := segments[0]
	switch strings.ToLower(handle) {
	case "i", "home", "explore":
		return ""
	}
	return handle
}

func statusIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, segment := range segments {
		if segment == "status" && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}
