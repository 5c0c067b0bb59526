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
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/blnkfinance/quakevault/config"
	"github.com/blnkfinance/quakevault/internal/cache"
	"github.com/blnkfinance/quakevault/model"
	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModelURL = "https://llm.example.com/v1/responses"

func newMockedModel(t *testing.T) *ModelClassifier {
	m := NewModelClassifier("sk-test", testModelURL, "gpt-4.1-mini", 5*time.Second)
	httpmock.ActivateNonDefault(m.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return m
}

func replyResponder(text string) httpmock.Responder {
	return httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{
		"output": []map[string]interface{}{
			{
				"type": "message",
				"content": []map[string]string{
					{"type": "output_text", "text": text},
				},
			},
		},
	})
}

func TestRuleClassifier(t *testing.T) {
	r := NewRuleClassifier(SevereMagnitude)
	tests := []struct {
		magnitude string
		want      bool
	}{
		{"5.9", false},
		{"6", true},
		{"6.0", true},
		{"7.4", true},
	}

	for _, tt := range tests {
		t.Run(tt.magnitude, func(t *testing.T) {
			got, err := r.AssessSeverity(context.Background(), decimal.RequireFromString(tt.magnitude), "Anywhere")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrompt(t *testing.T) {
	got := Prompt(decimal.RequireFromString("6.84"), "10 km S of Town")
	assert.Equal(t, "An earthquake of magnitude 6.8 occurred in 10 km S of Town. "+
		"Does this event likely require immediate humanitarian aid? "+
		"Reply with a single lowercase word: yes or no.", got)
}

func TestModelClassifierRequest(t *testing.T) {
	m := newMockedModel(t)

	httpmock.RegisterResponder("POST", testModelURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

		var body responsesRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "gpt-4.1-mini", body.Model)
		assert.Equal(t, Prompt(decimal.RequireFromString("7"), "Coast"), body.Input)
		return replyResponder("yes")(req)
	})

	severe, err := m.AssessSeverity(context.Background(), decimal.RequireFromString("7"), "Coast")
	require.NoError(t, err)
	assert.True(t, severe)
}

func TestModelClassifierVerdicts(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"yes", true},
		{"  Yes.\n", true},
		{"Y", true},
		{"no", false},
		{"No, it does not.", false},
		{"", false},
		{"maybe", false},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			m := newMockedModel(t)
			httpmock.RegisterResponder("POST", testModelURL, replyResponder(tt.reply))

			got, err := m.AssessSeverity(context.Background(), decimal.RequireFromString("6.5"), "Somewhere")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModelClassifierOutputTextField(t *testing.T) {
	m := newMockedModel(t)
	httpmock.RegisterResponder("POST", testModelURL, httpmock.NewStringResponder(200, `{"output_text": "yes"}`))

	got, err := m.AssessSeverity(context.Background(), decimal.RequireFromString("6.5"), "Somewhere")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestModelClassifierUnavailable(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{name: "server error", responder: httpmock.NewStringResponder(500, `{"error": {"message": "boom"}}`)},
		{name: "unauthorized", responder: httpmock.NewStringResponder(401, `{}`)},
		{name: "transport", responder: httpmock.NewErrorResponder(errors.New("connection reset"))},
		{name: "malformed", responder: httpmock.NewStringResponder(200, `not json`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockedModel(t)
			httpmock.RegisterResponder("POST", testModelURL, tt.responder)

			_, err := m.AssessSeverity(context.Background(), decimal.RequireFromString("6.5"), "Somewhere")
			assert.ErrorIs(t, err, model.ErrClassifierUnavailable)
			assert.Equal(t, 1, httpmock.GetTotalCallCount())
		})
	}
}

type countingClassifier struct {
	calls  int
	severe bool
	err    error
}

func (c *countingClassifier) AssessSeverity(context.Context, decimal.Decimal, string) (bool, error) {
	c.calls++
	return c.severe, c.err
}

func TestCachedClassifier(t *testing.T) {
	inner := &countingClassifier{severe: true}
	c := NewCachedClassifier(inner, cache.NewLocalCache(time.Minute), time.Minute)
	ctx := context.Background()
	mag := decimal.RequireFromString("6.8")

	for i := 0; i < 3; i++ {
		got, err := c.AssessSeverity(ctx, mag, "Coast")
		require.NoError(t, err)
		assert.True(t, got)
	}
	assert.Equal(t, 1, inner.calls)

	_, err := c.AssessSeverity(ctx, mag, "Inland")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedClassifierKeysOnPromptInputs(t *testing.T) {
	inner := &countingClassifier{severe: true}
	c := NewCachedClassifier(inner, cache.NewLocalCache(time.Minute), time.Minute)
	ctx := context.Background()

	// Two different events sharing magnitude and place produce the same prompt.
	_, err := c.AssessSeverity(ctx, decimal.RequireFromString("6.80"), "Coast")
	require.NoError(t, err)
	_, err = c.AssessSeverity(ctx, decimal.RequireFromString("6.8"), "Coast")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedClassifierDoesNotCacheFailures(t *testing.T) {
	inner := &countingClassifier{err: model.ErrClassifierUnavailable}
	c := NewCachedClassifier(inner, cache.NewLocalCache(time.Minute), time.Minute)
	ctx := context.Background()
	mag := decimal.RequireFromString("6.8")

	_, err := c.AssessSeverity(ctx, mag, "Coast")
	assert.ErrorIs(t, err, model.ErrClassifierUnavailable)

	inner.err = nil
	inner.severe = true
	got, err := c.AssessSeverity(ctx, mag, "Coast")
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, 2, inner.calls)
}

func TestNewSelectsVariant(t *testing.T) {
	cnf := &config.Configuration{}
	_, ok := New(cnf, nil).(*RuleClassifier)
	assert.True(t, ok)

	cnf.Classifier = config.ClassifierConfig{ApiKey: "sk-test", Url: testModelURL, Model: "gpt-4.1-mini", TimeoutSec: 5}
	_, ok = New(cnf, nil).(*ModelClassifier)
	assert.True(t, ok)

	cnf.Classifier.CacheTTLMinutes = 10
	_, ok = New(cnf, cache.NewLocalCache(time.Minute)).(*CachedClassifier)
	assert.True(t, ok)
}
