/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package severity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blnkfinance/quakevault/internal/request"
	"github.com/blnkfinance/quakevault/model"
	"github.com/shopspring/decimal"
)

const promptTemplate = "An earthquake of magnitude %s occurred in %s. " +
	"Does this event likely require immediate humanitarian aid? " +
	"Reply with a single lowercase word: yes or no."

type responsesRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type responsesResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// text joins every output_text fragment of the response.
func (r responsesResponse) text() string {
	if r.OutputText != "" {
		return r.OutputText
	}
	var sb strings.Builder
	for _, item := range r.Output {
		for _, part := range item.Content {
			if part.Type == "output_text" || part.Type == "text" {
				sb.WriteString(part.Text)
			}
		}
	}
	return sb.String()
}

// ModelClassifier asks an OpenAI Responses-compatible endpoint for a yes/no verdict.
// Each assessment is a single attempt bounded by the client timeout.
type ModelClassifier struct {
	apiKey string
	url    string
	model  string
	client *http.Client
}

func NewModelClassifier(apiKey, url, modelName string, timeout time.Duration) *ModelClassifier {
	return &ModelClassifier{
		apiKey: apiKey,
		url:    url,
		model:  modelName,
		client: &http.Client{Timeout: timeout},
	}
}

// Prompt renders the question sent for an event.
func Prompt(magnitude decimal.Decimal, place string) string {
	return fmt.Sprintf(promptTemplate, magnitude.StringFixed(1), place)
}

// AssessSeverity is true when the trimmed, lower-cased reply starts with "y".
func (m *ModelClassifier) AssessSeverity(ctx context.Context, magnitude decimal.Decimal, place string) (bool, error) {
	payload, err := request.ToJsonReq(responsesRequest{Model: m.model, Input: Prompt(magnitude, place)})
	if err != nil {
		return false, fmt.Errorf("%w: %v", model.ErrClassifierUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, payload)
	if err != nil {
		return false, fmt.Errorf("%w: %v", model.ErrClassifierUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	var resp responsesResponse
	if _, err := request.CallWithClient(m.client, req, &resp); err != nil {
		return false, fmt.Errorf("%w: %v", model.ErrClassifierUnavailable, err)
	}

	answer := strings.ToLower(strings.TrimSpace(resp.text()))
	return strings.HasPrefix(answer, "y"), nil
}
