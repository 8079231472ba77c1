package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty input", raw: "", want: []string{}},
		{name: "single tag", raw: "go", want: []string{"go"}},
		{name: "trims whitespace", raw: " go , web ,  http ", want: []string{"go", "web", "http"}},
		{name: "drops blanks", raw: "go,,  ,web,", want: []string{"go", "web"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTags(tt.raw))
		})
	}
}

func TestPostParams_TagsJSON(t *testing.T) {
	assert.Equal(t, `[]`, PostParams{}.TagsJSON())
	assert.Equal(t, `["go","web"]`, PostParams{Tags: []string{"go", "web"}}.TagsJSON())
}

func TestPostStatus_Valid(t *testing.T) {
	assert.True(t, PostStatusDraft.Valid())
	assert.True(t, PostStatusPublished.Valid())
	assert.True(t, PostStatusArchived.Valid())
	assert.False(t, PostStatus("").Valid())
}

func TestCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{400, EINVALID},
		{422, EINVALID},
		{401, EUNAUTHORIZED},
		{403, EFORBIDDEN},
		{404, ENOTFOUND},
		{409, ECONFLICT},
		{429, ERATELIMIT},
		{500, EUNAVAILABLE},
		{502, EUNAVAILABLE},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeForStatus(tt.status), "status %d", tt.status)
	}
}
