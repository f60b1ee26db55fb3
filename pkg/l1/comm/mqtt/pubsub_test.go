package mqtt

import (
	"io"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/relaynode/pkg/l1"
)

func TestMatchTopic(t *testing.T) {
	testCases := []struct {
		topic   string
		pattern string
		match   bool
	}{
		{"relay/a1/meta", "+/+/meta", true},
		{"relay/a1/msg", "+/+/meta", false},
		{"relay/a1", "+/+/meta", false},
		{"relay/a1/meta/x", "+/+/meta", false},
		{"relay/a1/msg", "relay/#", true},
		{"relay", "relay/#", true},
		{"relay/a1/msg", "#", true},
		{"relay/a1/cmd", "relay/a1/cmd", true},
		{"relay/a2/cmd", "relay/a1/cmd", false},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.match, MatchTopic(tc.topic, tc.pattern), "%s ~ %s", tc.topic, tc.pattern)
	}
}

func TestClientOptionsFromURL(t *testing.T) {
	testCases := []struct {
		url    string
		server string
		prefix string
		user   string
		pass   string
		client string
	}{
		{"mqtt://localhost:1883/relay/", "tcp://localhost:1883", "relay/", "", "", ""},
		{"tcp://broker:1883", "tcp://broker:1883", "", "", "", ""},
		{"ws://u:p@broker:8080/a/b/?client-id=x", "ws://broker:8080", "a/b/", "u", "p", "x"},
	}
	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			opts, prefix, err := ClientOptionsFromURL(tc.url)
			require.NoError(t, err)
			require.Equal(t, tc.prefix, prefix)
			require.Len(t, opts.Servers, 1)
			require.Equal(t, tc.server, opts.Servers[0].String())
			require.Equal(t, tc.user, opts.Username)
			require.Equal(t, tc.pass, opts.Password)
			require.Equal(t, tc.client, opts.ClientID)
		})
	}
	_, _, err := ClientOptionsFromURL("://bad")
	require.Error(t, err)
}

func TestQueueSubscriptions(t *testing.T) {
	q := NewQueue(paho.NewClientOptions(), "relay/")
	var got []string
	sub1 := q.Sub("+/+/meta", Handler(func(topic string, _ []byte) { got = append(got, "1:"+topic) }))
	q.Sub("+/+/meta", Handler(func(topic string, _ []byte) { got = append(got, "2:"+topic) }))
	require.Len(t, q.handlers("relay/a1/meta"), 2)
	require.Empty(t, q.handlers("relay/a1/msg"))

	for _, h := range q.handlers("relay/a1/meta") {
		h("relay/a1/meta", nil)
	}
	require.ElementsMatch(t, []string{"1:relay/a1/meta", "2:relay/a1/meta"}, got)

	require.NoError(t, sub1.Close())
	require.Len(t, q.handlers("relay/a1/meta"), 1)
}

func TestParseMetaTopic(t *testing.T) {
	ref, ok := ParseMetaTopic("relay/a1/meta")
	require.True(t, ok)
	require.Equal(t, l1.NodeRef{Type: "relay", ID: "a1"}, ref)
	_, ok = ParseMetaTopic("relay/a1/msg")
	require.False(t, ok)
	_, ok = ParseMetaTopic("relay//meta")
	require.False(t, ok)
}

func TestReadWriterTopics(t *testing.T) {
	ref := l1.NodeRef{Type: "relay", ID: "a1"}
	rw := NewPacketReadWriter(nil).ForNode(ref)
	require.Equal(t, "relay/a1/cmd", rw.SubTopic)
	require.Equal(t, "relay/a1/msg", rw.PubTopic)
	rw.ForConnector(ref)
	require.Equal(t, "relay/a1/msg", rw.SubTopic)
	require.Equal(t, "relay/a1/cmd", rw.PubTopic)
}

func TestReadWriterPackets(t *testing.T) {
	rw := NewPacketReadWriter(nil)
	rw.handleMsg("relay/a1/cmd", []byte{1, 2})
	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, pkt)

	close(rw.doneCh)
	// dropped instead of blocking the callback
	rw.handleMsg("relay/a1/cmd", []byte{3})
	rw.handleMsg("relay/a1/cmd", []byte{4})
	for {
		if _, err = rw.ReadPacket(); err != nil {
			break
		}
	}
	require.Equal(t, io.EOF, err)
}

type stalledToken struct{ paho.Token }

func (t *stalledToken) WaitTimeout(time.Duration) bool { return false }

type stalledClient struct {
	paho.Client
	published []string
}

func (c *stalledClient) Publish(topic string, _ byte, _ bool, _ interface{}) paho.Token {
	c.published = append(c.published, topic)
	return &stalledToken{}
}

func TestReadWriterWriteTimeout(t *testing.T) {
	client := &stalledClient{}
	rw := NewPacketReadWriter(&Queue{Client: client, TopicPrefix: "relay/"}).
		ForNode(l1.NodeRef{Type: "relay", ID: "a1"})
	rw.WriteTimeout = time.Millisecond
	require.Equal(t, ErrWriteTimeout, rw.WritePacket([]byte{1}))
	require.Equal(t, []string{"relay/relay/a1/msg"}, client.published)
}
