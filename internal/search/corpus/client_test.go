package corpus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client := NewClient(Config{
		URL:     ts.URL,
		Index:   "bayardcorpus",
		ModelID: ".elser_model_2_linux-x86_64",
		MaxHits: 10,
	})
	return client, ts
}

func esResponse(hits ...map[string]interface{}) string {
	wrapped := make([]map[string]interface{}, 0, len(hits))
	for i, h := range hits {
		wrapped = append(wrapped, map[string]interface{}{
			"_score":  float64(10 - i),
			"_source": h,
		})
	}
	body, _ := json.Marshal(map[string]interface{}{
		"hits": map[string]interface{}{"hits": wrapped},
	})
	return string(body)
}

func TestSearch_SendsTextExpansionQuery(t *testing.T) {
	var gotPath string
	var gotBody searchBody

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(esResponse()))
	})

	_, err := client.Search(context.Background(), "pride month")
	require.NoError(t, err)

	assert.Equal(t, "/bayardcorpus/_search", gotPath)
	assert.Equal(t, 10, gotBody.Size)
	exp := gotBody.Query.TextExpansion["content_embedding"]
	assert.Equal(t, ".elser_model_2_linux-x86_64", exp.ModelID)
	assert.Equal(t, "pride month", exp.ModelText)
}

func TestSearch_PlaceholdersForMissingFields(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(esResponse(map[string]interface{}{
			"title": "Stonewall at Fifty",
		})))
	})

	docs, err := client.Search(context.Background(), "stonewall")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "Stonewall at Fifty", doc.Title)
	assert.Equal(t, "No ID provided", doc.ID)
	assert.Equal(t, "No abstract available", doc.Abstract)
	assert.Equal(t, []string{"No authors listed"}, doc.Authors)
	assert.Equal(t, []string{"No categories listed"}, doc.Categories)
	assert.Equal(t, "No classification provided", doc.Classification)
	assert.Equal(t, []string{"No concepts listed"}, doc.Concepts)
	assert.Equal(t, "No download URL provided", doc.DownloadURL)
	assert.Equal(t, "No emotion provided", doc.Emotion)
	assert.Equal(t, "No sentiment provided", doc.Sentiment)
	assert.Equal(t, "No year listed", doc.YearPublished)
	assert.Equal(t, 10.0, doc.RelevanceScore)
}

func TestSearch_DeduplicatesByTitleFirstWins(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(esResponse(
			map[string]interface{}{"title": "Equality Act", "abstract": "first"},
			map[string]interface{}{"title": "Equality Act", "abstract": "second"},
			map[string]interface{}{"title": "Pride Month", "abstract": "third"},
		)))
	})

	docs, err := client.Search(context.Background(), "equality act")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "Equality Act", docs[0].Title)
	assert.Equal(t, "first", docs[0].Abstract, "highest-relevance occurrence wins")
	assert.Equal(t, "Pride Month", docs[1].Title)
	assert.Greater(t, docs[0].RelevanceScore, docs[1].RelevanceScore)
}

func TestSearch_MixedSourceShapes(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(esResponse(map[string]interface{}{
			"title":         "Queer Theory",
			"authors":       "bell hooks",
			"yearPublished": 1994,
		})))
	})

	docs, err := client.Search(context.Background(), "theory")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, []string{"bell hooks"}, docs[0].Authors)
	assert.Equal(t, "1994", docs[0].YearPublished)
}

func TestSearch_ErrorOnBadStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Search(context.Background(), "anything")
	assert.Error(t, err)
}

func TestSearch_ErrorOnUnreachableIndex(t *testing.T) {
	client, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ts.Close()

	_, err := client.Search(context.Background(), "anything")
	assert.Error(t, err)
}
