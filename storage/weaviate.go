package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ewintr.nl/capsum/model"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const (
	className = "VideoSummary"
)

type WeaviateInfo struct {
	Scheme       string
	Host         string
	ApiKey       string
	OpenAIApiKey string
}

// Weaviate indexes the summaries of active videos so a user can search
// through them by meaning instead of by keyword.
type Weaviate struct {
	client *weaviate.Client
}

func NewWeaviate(info WeaviateInfo) (*Weaviate, error) {
	scheme := info.Scheme
	if scheme == "" {
		scheme = "https"
	}
	config := weaviate.Config{
		Scheme:     scheme,
		Host:       info.Host,
		AuthConfig: auth.ApiKey{Value: info.ApiKey},
		Headers: map[string]string{
			"X-OpenAI-Api-Key": info.OpenAIApiKey,
		},
	}

	c, err := weaviate.NewClient(config)
	if err != nil {
		return nil, err
	}

	return &Weaviate{client: c}, nil
}

func (w *Weaviate) EnsureSchema(ctx context.Context) error {
	_, err := w.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
	if err == nil {
		return nil
	}
	var clientErr *fault.WeaviateClientError
	if !errors.As(err, &clientErr) || clientErr.StatusCode != http.StatusNotFound {
		return err
	}

	skip := map[string]any{"text2vec-openai": map[string]any{"skip": true}}
	classObj := &models.Class{
		Class:      className,
		Vectorizer: "text2vec-openai",
		ModuleConfig: map[string]any{
			"text2vec-openai": map[string]any{
				"model":        "ada",
				"modelVersion": "002",
				"type":         "text",
			},
		},
		Properties: []*models.Property{
			{Name: "videoId", DataType: []string{"text"}, Tokenization: "field", ModuleConfig: skip},
			{Name: "userId", DataType: []string{"text"}, Tokenization: "field", ModuleConfig: skip},
			{Name: "title", DataType: []string{"text"}},
			{Name: "summary", DataType: []string{"text"}},
		},
	}

	return w.client.Schema().ClassCreator().WithClass(classObj).Do(ctx)
}

func (w *Weaviate) Save(ctx context.Context, video *model.Video) error {
	vID := video.ID.String()
	props := map[string]any{
		"videoId": vID,
		"userId":  video.UserID,
		"title":   video.Title.String,
		"summary": video.Content,
	}

	// check it already exists
	exists, err := w.client.Data().
		Checker().
		WithID(vID).
		WithClassName(className).
		Do(ctx)
	if err != nil {
		return err
	}

	if exists {
		return w.client.Data().
			Updater().
			WithID(vID).
			WithClassName(className).
			WithProperties(props).
			Do(ctx)
	}

	_, err = w.client.Data().
		Creator().
		WithClassName(className).
		WithID(vID).
		WithProperties(props).
		Do(ctx)

	return err
}

func (w *Weaviate) Delete(ctx context.Context, id uuid.UUID) error {
	err := w.client.Data().
		Deleter().
		WithClassName(className).
		WithID(id.String()).
		Do(ctx)
	var clientErr *fault.WeaviateClientError
	if errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusNotFound {
		return nil
	}

	return err
}

func (w *Weaviate) Search(ctx context.Context, userID, query string, limit int) ([]SearchResult, error) {
	fields := []graphql.Field{
		{Name: "videoId"},
		{Name: "title"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}
	nearText := w.client.GraphQL().NearTextArgBuilder().WithConcepts([]string{query})
	where := filters.Where().
		WithPath([]string{"userId"}).
		WithOperator(filters.Equal).
		WithValueText(userID)

	resp, err := w.client.GraphQL().Get().
		WithClassName(className).
		WithFields(fields...).
		WithNearText(nearText).
		WithWhere(where).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("search failed: %s", resp.Errors[0].Message)
	}

	return parseSearchResponse(resp.Data)
}

func parseSearchResponse(data map[string]models.JSONObject) ([]SearchResult, error) {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected search response")
	}
	items, _ := get[className].([]any)

	results := make([]SearchResult, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		idStr, _ := obj["videoId"].(string)
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		res := SearchResult{ID: id}
		res.Title, _ = obj["title"].(string)
		if add, ok := obj["_additional"].(map[string]any); ok {
			res.Distance, _ = add["distance"].(float64)
		}
		results = append(results, res)
	}

	return results, nil
}
