package bridge

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/autoseed-cli/internal/domain"
)

func TestEncodeWrapsPayloadInEnvelope(t *testing.T) {
	t.Parallel()

	data, err := Encode(SwitchAccount{Credential: "c_user=1", Destination: "https://example.test/post"})
	require.NoError(t, err)

	var env struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "switch-account", env.Type)
	assert.Equal(t, "c_user=1", env.Payload["credential"])
	assert.Equal(t, "https://example.test/post", env.Payload["destination"])
}

func TestDecodeKnownKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want Message
	}{
		{name: "pong without payload", raw: `{"type":"pong"}`, want: Pong{}},
		{name: "null payload", raw: `{"type":"action-complete","payload":null}`, want: ActionComplete{}},
		{name: "identity report", raw: `{"type":"identity-report","payload":{"uid":"1000123","displayName":"Lan"}}`, want: IdentityReport{UID: "1000123", DisplayName: "Lan"}},
		{name: "target result", raw: `{"type":"target-result","payload":{"found":true}}`, want: TargetResult{Found: true}},
		{name: "account status", raw: `{"type":"account-status","payload":{"accountId":"42","status":"live"}}`, want: AccountStatus{AccountID: "42", Status: "live"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg)
		})
	}
}

func TestDecodeExecuteRoundTrip(t *testing.T) {
	t.Parallel()

	in := Execute{
		Action:      domain.ActionComment,
		Text:        "nice",
		Destination: "https://example.test/post",
		Metadata: ExecuteMetadata{
			CampaignID:  "c1",
			AccountName: "Lan",
			Humanize:    &HumanizeOptions{Enabled: true, TypingSpeed: "fast", LikeCount: 2},
		},
	}

	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeRejectsUnknownAndMalformed(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"type":"teleport","payload":{}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKind))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, Kind("teleport"), decodeErr.Kind)

	_, err = Decode([]byte(`{"type":"identity-report","payload":{"uid":12}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, KindIdentityReport, decodeErr.Kind)

	_, err = Decode([]byte(`not json`))
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = Decode([]byte(`{"payload":{}}`))
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestHumanizeFromDisabledIsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, HumanizeFrom(domain.HumanizeConfig{TypingSpeed: domain.TypingFast}))
	assert.Equal(t, &HumanizeOptions{Enabled: true, TypingSpeed: "slow", Typos: true}, HumanizeFrom(domain.HumanizeConfig{Enabled: true, TypingSpeed: domain.TypingSlow, Typos: true}))
}
