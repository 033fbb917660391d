package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Document is one normalized corpus record. Every field carries a
// placeholder when the index omits it; callers never see a missing field.
type Document struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Abstract       string   `json:"abstract"`
	Authors        []string `json:"authors"`
	Categories     []string `json:"categories"`
	Classification string   `json:"classification"`
	Concepts       []string `json:"concepts"`
	DownloadURL    string   `json:"downloadUrl"`
	Emotion        string   `json:"emotion"`
	Sentiment      string   `json:"sentiment"`
	YearPublished  string   `json:"yearPublished"`
	RelevanceScore float64  `json:"relevanceScore"`
}

const (
	placeholderID             = "No ID provided"
	placeholderTitle          = "No title provided"
	placeholderAbstract       = "No abstract available"
	placeholderClassification = "No classification provided"
	placeholderDownloadURL    = "No download URL provided"
	placeholderEmotion        = "No emotion provided"
	placeholderSentiment      = "No sentiment provided"
	placeholderYear           = "No year listed"
)

var (
	placeholderAuthors    = []string{"No authors listed"}
	placeholderCategories = []string{"No categories listed"}
	placeholderConcepts   = []string{"No concepts listed"}
)

// Client queries the corpus search index over its HTTP search API using a
// sparse text-expansion query.
type Client struct {
	url        string
	apiKey     string
	index      string
	modelID    string
	maxHits    int
	httpClient *http.Client
	logger     *zap.Logger
}

type Config struct {
	URL        string
	APIKey     string
	Index      string
	ModelID    string
	MaxHits    int
	TimeoutSec int
	Logger     *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.MaxHits == 0 {
		cfg.MaxHits = 10
	}
	if cfg.TimeoutSec == 0 {
		cfg.TimeoutSec = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Client{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		index:   cfg.Index,
		modelID: cfg.ModelID,
		maxHits: cfg.MaxHits,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
		logger: cfg.Logger,
	}
}

type searchBody struct {
	Query searchQuery `json:"query"`
	Size  int         `json:"size"`
}

type searchQuery struct {
	TextExpansion map[string]textExpansion `json:"text_expansion"`
}

type textExpansion struct {
	ModelID   string `json:"model_id"`
	ModelText string `json:"model_text"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64         `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type sourceFields struct {
	ID             string     `json:"_id"`
	Title          string     `json:"title"`
	Abstract       string     `json:"abstract"`
	Authors        stringList `json:"authors"`
	Categories     stringList `json:"categories"`
	Classification string     `json:"classification"`
	Concepts       stringList `json:"concepts"`
	DownloadURL    string     `json:"downloadUrl"`
	Emotion        string     `json:"emotion"`
	Sentiment      string     `json:"sentiment"`
	YearPublished  yearValue  `json:"yearPublished"`
}

// stringList accepts either a JSON array of strings or a single string,
// both of which appear in the corpus.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if single != "" {
		*s = []string{single}
	}
	return nil
}

// yearValue accepts a JSON number or string.
type yearValue string

func (y *yearValue) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*y = yearValue(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*y = yearValue(num.String())
	return nil
}

// Search returns the ranked documents for the query text, deduplicated by
// title with the first (highest-relevance) occurrence kept.
func (c *Client) Search(ctx context.Context, text string) ([]Document, error) {
	body := searchBody{
		Query: searchQuery{
			TextExpansion: map[string]textExpansion{
				"content_embedding": {
					ModelID:   c.modelID,
					ModelText: text,
				},
			},
		},
		Size: c.maxHits,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search body: %w", err)
	}

	url := fmt.Sprintf("%s/%s/_search", c.url, c.index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	docs := make([]Document, 0, len(parsed.Hits.Hits))
	seenTitles := make(map[string]bool)

	for _, hit := range parsed.Hits.Hits {
		var src sourceFields
		if err := json.Unmarshal(hit.Source, &src); err != nil {
			c.logger.Warn("Skipping unparseable hit", zap.Error(err))
			continue
		}

		doc := normalize(src, hit.Score)
		if seenTitles[doc.Title] {
			continue
		}
		seenTitles[doc.Title] = true
		docs = append(docs, doc)
	}

	c.logger.Info("Corpus search completed",
		zap.Int("hits", len(parsed.Hits.Hits)),
		zap.Int("documents", len(docs)),
	)

	return docs, nil
}

func normalize(src sourceFields, score float64) Document {
	doc := Document{
		ID:             src.ID,
		Title:          src.Title,
		Abstract:       src.Abstract,
		Authors:        src.Authors,
		Categories:     src.Categories,
		Classification: src.Classification,
		Concepts:       src.Concepts,
		DownloadURL:    src.DownloadURL,
		Emotion:        src.Emotion,
		Sentiment:      src.Sentiment,
		YearPublished:  string(src.YearPublished),
		RelevanceScore: score,
	}

	if doc.ID == "" {
		doc.ID = placeholderID
	}
	if doc.Title == "" {
		doc.Title = placeholderTitle
	}
	if doc.Abstract == "" {
		doc.Abstract = placeholderAbstract
	}
	if len(doc.Authors) == 0 {
		doc.Authors = placeholderAuthors
	}
	if len(doc.Categories) == 0 {
		doc.Categories = placeholderCategories
	}
	if doc.Classification == "" {
		doc.Classification = placeholderClassification
	}
	if len(doc.Concepts) == 0 {
		doc.Concepts = placeholderConcepts
	}
	if doc.DownloadURL == "" {
		doc.DownloadURL = placeholderDownloadURL
	}
	if doc.Emotion == "" {
		doc.Emotion = placeholderEmotion
	}
	if doc.Sentiment == "" {
		doc.Sentiment = placeholderSentiment
	}
	if doc.YearPublished == "" {
		doc.YearPublished = placeholderYear
	}

	return doc
}
