package signaling

import (
	"fmt"
	"time"

	"github.com/pion/sdp/v3"
)

// buildSDP creates the audio SDP body we attach to INVITEs and re-INVITEs.
// The media plane itself is negotiated outside this client; we offer the
// standard telephony codecs and, for hold, flip the direction attribute the
// way deskphones do (sendonly to park, sendrecv to resume).
func buildSDP(username, addr string, port int, hold bool) ([]byte, error) {
	direction := "sendrecv"
	if hold {
		direction = "sendonly"
	}

	sessionDesc := &sdp.SessionDescription{
		Origin: sdp.Origin{
			Username:       username,
			SessionID:      uint64(time.Now().Unix()),
			SessionVersion: uint64(time.Now().UnixNano()),
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: addr,
		},
		SessionName: "Softphone Call",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address: &sdp.Address{
				Address: addr,
			},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
		MediaDescriptions: []*sdp.MediaDescription{
			{
				MediaName: sdp.MediaName{
					Media:   "audio",
					Port:    sdp.RangedPort{Value: port},
					Protos:  []string{"RTP", "AVP"},
					Formats: []string{"0", "8", "101"},
				},
				Attributes: []sdp.Attribute{
					{Key: "rtpmap", Value: "0 PCMU/8000"},
					{Key: "rtpmap", Value: "8 PCMA/8000"},
					{Key: "rtpmap", Value: "101 telephone-event/8000"},
					{Key: "fmtp", Value: "101 0-15"},
					{Key: direction},
				},
			},
		},
	}

	body, err := sessionDesc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal sdp: %w", err)
	}
	return body, nil
}
