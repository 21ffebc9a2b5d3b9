package rtcManager

import (
	"fmt"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

type SDPValidationError struct {
	Field   string
	Message string
}

func (e *SDPValidationError) Error() string {
	return fmt.Sprintf("SDP validation error in %s: %s", e.Field, e.Message)
}

// validateSDP checks that a remote description can start a session: it must
// parse, have at least one media section, and carry ICE credentials and a
// DTLS fingerprint at session or media level.
func validateSDP(sd webrtc.SessionDescription) error {
	if sd.SDP == "" {
		return &SDPValidationError{Field: "SessionDescription", Message: "is empty"}
	}

	parsed := &sdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(sd.SDP)); err != nil {
		return &SDPValidationError{Field: "SessionDescription", Message: err.Error()}
	}

	if len(parsed.MediaDescriptions) == 0 {
		return &SDPValidationError{Field: "Media", Message: "no media sections found"}
	}

	_, sessionUfrag := parsed.Attribute("ice-ufrag")
	sessionFingerprint, hasSessionFingerprint := parsed.Attribute("fingerprint")

	for _, media := range parsed.MediaDescriptions {
		if _, ok := media.Attribute("ice-ufrag"); !ok && !sessionUfrag {
			return &SDPValidationError{
				Field:   "ICE",
				Message: fmt.Sprintf("no ICE credentials for %s section", media.MediaName.Media),
			}
		}
		fingerprint, ok := media.Attribute("fingerprint")
		if !ok {
			fingerprint, ok = sessionFingerprint, hasSessionFingerprint
		}
		if !ok {
			return &SDPValidationError{Field: "DTLS", Message: "no DTLS fingerprint found"}
		}
		if fingerprint == "" {
			return &SDPValidationError{Field: "Fingerprint", Message: "empty DTLS fingerprint"}
		}
	}
	return nil
}
