package evm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPC_ToEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    RPC
		want    string
		wantErr string
	}{
		{
			name: "http preferred",
			give: RPC{Name: "a", HTTPURL: "http://node", WSURL: "ws://node", PreferredURLScheme: URLSchemePreferenceHTTP},
			want: "http://node",
		},
		{
			name: "ws preferred",
			give: RPC{Name: "a", HTTPURL: "http://node", WSURL: "ws://node", PreferredURLScheme: URLSchemePreferenceWS},
			want: "ws://node",
		},
		{
			name: "no preference falls back to ws",
			give: RPC{Name: "a", WSURL: "ws://node"},
			want: "ws://node",
		},
		{
			name:    "ws preferred but missing",
			give:    RPC{Name: "a", HTTPURL: "http://node", PreferredURLScheme: URLSchemePreferenceWS},
			wantErr: "has no WS URL",
		},
		{
			name:    "no urls",
			give:    RPC{Name: "a"},
			wantErr: "has no URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.give.ToEndpoint()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURLSchemePreferenceFromString(t *testing.T) {
	t.Parallel()

	for give, want := range map[string]URLSchemePreference{
		"":      URLSchemePreferenceNone,
		"http":  URLSchemePreferenceHTTP,
		"HTTPS": URLSchemePreferenceHTTP,
		"ws":    URLSchemePreferenceWS,
	} {
		got, err := URLSchemePreferenceFromString(give)
		require.NoError(t, err)
		assert.Equal(t, want, got, give)
	}

	_, err := URLSchemePreferenceFromString("grpc")
	require.Error(t, err)
}
