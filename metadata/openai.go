/*
DESCRIPTION
  openai.go provides a metadata Generator backed by the OpenAI chat
  completions API.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This file is part of Ocean Upload. Ocean Upload is free software: you can
  redistribute it and/or modify it under the terms of the GNU
  General Public License as published by the Free Software
  Foundation, either version 3 of the License, or (at your option)
  any later version.

  Ocean Upload is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see <http://www.gnu.org/licenses/>.
*/

package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// DefaultModel is the chat model used when none is specified.
const DefaultModel = openai.ChatModelGPT3_5Turbo

const systemPrompt = "You are a YouTube SEO expert. Generate metadata in JSON format with these fields: " +
	"title (engaging version of input title), description (compelling 2-3 paragraphs), " +
	"tags (15-20 relevant keywords as array)."

var errNoChoices = errors.New("no choices in completion")

// OpenAI generates metadata with an OpenAI chat model.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI returns an OpenAI generator. Request options such as
// option.WithAPIKey are passed through to the client.
func NewOpenAI(model string, opts ...option.RequestOption) *OpenAI {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}
}

// Generate implements Generator.
func (o *OpenAI) Generate(ctx context.Context, title string) (Metadata, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(fmt.Sprintf("Generate optimized YouTube metadata for this video title: %q. Return only valid JSON.", title)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("could not create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Metadata{}, errNoChoices
	}
	return parse(resp.Choices[0].Message.Content, title)
}

// parse decodes a model response. A missing title falls back to the
// original and tags that are not a list of strings are dropped.
func parse(content, title string) (Metadata, error) {
	var raw struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Tags        json.RawMessage `json:"tags"`
	}
	err := json.Unmarshal([]byte(content), &raw)
	if err != nil {
		return Metadata{}, fmt.Errorf("could not decode metadata: %w", err)
	}

	md := Metadata{Title: raw.Title, Description: raw.Description, Tags: []string{}}
	if md.Title == "" {
		md.Title = title
	}
	var tags []string
	if json.Unmarshal(raw.Tags, &tags) == nil && tags != nil {
		md.Tags = tags
	}
	return md, nil
}
