package connector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConnector(t *testing.T) {
	testCases := []struct {
		url string
		ok  bool
	}{
		{"mqtt://localhost:1883/relay/", true},
		{"tcp://localhost:1883", true},
		{"http://localhost", false},
		{"://", false},
	}
	for _, tc := range testCases {
		conf := NewConfig()
		conf.RegistryURL = tc.url
		_, err := conf.NewConnector()
		if tc.ok {
			require.NoError(t, err, tc.url)
		} else {
			require.Error(t, err, tc.url)
		}
	}
}

func TestConnectRequiresRef(t *testing.T) {
	conf := NewConfig()
	conf.Ref.ID = ""
	_, err := conf.Connect()
	require.Error(t, err)
}
