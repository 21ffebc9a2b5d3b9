package signaling

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func TestEncode_WireShape(t *testing.T) {
	mid := "0"
	idx := uint16(0)

	testCases := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "join",
			msg:  JoinChannel{ChannelID: "42"},
			want: `{"type":"join-channel","channelId":"42"}`,
		},
		{
			name: "answer",
			msg:  Answer{Description: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"}},
			want: `{"type":"answer","answer":{"type":"answer","sdp":"v=0"}}`,
		},
		{
			name: "candidate",
			msg: ICECandidate{Candidate: webrtc.ICECandidateInit{
				Candidate: "candidate:1 1 udp 2130706431 1.2.3.4 5000 typ host", SDPMid: &mid, SDPMLineIndex: &idx,
			}},
			want: `{"type":"ice-candidate","candidate":{"candidate":"candidate:1 1 udp 2130706431 1.2.3.4 5000 typ host","sdpMid":"0","sdpMLineIndex":0,"usernameFragment":null}}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Encode(tc.msg)
			require.NoError(t, err)
			require.JSONEq(t, tc.want, string(data))
		})
	}
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name    string
		data    string
		want    Message
		wantErr error
	}{
		{
			name: "offer",
			data: `{"type":"offer","offer":{"type":"offer","sdp":"v=0"}}`,
			want: Offer{Description: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}},
		},
		{
			name: "offer without inner type",
			data: `{"type":"offer","offer":{"sdp":"v=0"}}`,
			want: Offer{Description: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}},
		},
		{
			name: "channel joined",
			data: `{"type":"channel-joined","channelId":"42"}`,
			want: ChannelJoined{ChannelID: "42"},
		},
		{
			name: "error with message field",
			data: `{"type":"error","message":"no such channel"}`,
			want: ErrorMessage{Message: "no such channel"},
		},
		{
			name: "error with error field",
			data: `{"type":"error","error":"full"}`,
			want: ErrorMessage{Message: "full"},
		},
		{name: "not json", data: `{"type":`, wantErr: ErrMalformed},
		{name: "missing type", data: `{}`, wantErr: ErrMalformed},
		{name: "offer without sdp", data: `{"type":"offer"}`, wantErr: ErrMalformed},
		{name: "candidate without body", data: `{"type":"ice-candidate"}`, wantErr: ErrMalformed},
		{name: "unknown", data: `{"type":"bye"}`, wantErr: ErrUnknownType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.data))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDecode_CandidateKeepsFields(t *testing.T) {
	data := []byte(`{"type":"ice-candidate","candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 9 typ host","sdpMid":"1","sdpMLineIndex":1}}`)
	msg, err := Decode(data)
	require.NoError(t, err)

	c := msg.(ICECandidate).Candidate
	require.Equal(t, "candidate:1 1 udp 1 10.0.0.1 9 typ host", c.Candidate)
	require.NotNil(t, c.SDPMid)
	require.Equal(t, "1", *c.SDPMid)
	require.NotNil(t, c.SDPMLineIndex)
	require.EqualValues(t, 1, *c.SDPMLineIndex)

	// round trip keeps the envelope type
	out, err := Encode(msg)
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(out, &env))
	require.Equal(t, TypeICECandidate, env["type"])
}
