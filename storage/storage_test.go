package storage

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func TestCompareMigrations(t *testing.T) {
	for _, tc := range []struct {
		name     string
		wanted   []string
		existing []string
		exp      []string
		expErr   bool
	}{
		{
			name:   "fresh database",
			wanted: []string{"a", "b"},
			exp:    []string{"a", "b"},
		},
		{
			name:     "up to date",
			wanted:   []string{"a", "b"},
			existing: []string{"a", "b"},
			exp:      []string{},
		},
		{
			name:     "new migration",
			wanted:   []string{"a", "b", "c"},
			existing: []string{"a", "b"},
			exp:      []string{"c"},
		},
		{
			name:     "changed migration",
			wanted:   []string{"a", "x"},
			existing: []string{"a", "b"},
			expErr:   true,
		},
		{
			name:     "database ahead",
			wanted:   []string{"a"},
			existing: []string{"a", "b"},
			expErr:   true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			act, err := compareMigrations(tc.wanted, tc.existing)
			if tc.expErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.exp, act)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db/capsum", PostgresInfo{URL: "postgres://u:p@db/capsum", Host: "ignored"}.DSN())
	assert.Equal(t,
		"host=localhost port=5432 user=capsum password=secret dbname=capsum sslmode=disable",
		PostgresInfo{Host: "localhost", Port: "5432", User: "capsum", Password: "secret", Database: "capsum"}.DSN())
}

func TestParseSearchResponse(t *testing.T) {
	id := uuid.New()
	data := map[string]models.JSONObject{
		"Get": map[string]any{
			"VideoSummary": []any{
				map[string]any{
					"videoId":     id.String(),
					"title":       "Go & Testing",
					"_additional": map[string]any{"distance": 0.25},
				},
				map[string]any{"videoId": "broken"},
			},
		},
	}

	act, err := parseSearchResponse(data)
	require.NoError(t, err)
	assert.Equal(t, []SearchResult{{ID: id, Title: "Go & Testing", Distance: 0.25}}, act)
}
