package rtcManager

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

const (
	fmtpMaxBitrate = "x-google-max-bitrate"
	fmtpMinBitrate = "x-google-min-bitrate"
	fmtpInbandFEC  = "useinbandfec"

	bandwidthAS = "AS"
)

// Preferences are the codec and bitrate rules applied to a local description.
type Preferences struct {
	// VideoCodecs in preference order; the first one present in a section wins.
	VideoCodecs    []string
	AudioCodec     string
	MinBitrateKbps int
	MaxBitrateKbps int
}

// ApplyPreferences rewrites desc so the preferred codecs come first in each
// media section and carry the bitrate and FEC parameters. The rewrite is
// deterministic and applying it twice gives the same result as applying it once.
func ApplyPreferences(desc webrtc.SessionDescription, prefs Preferences) (webrtc.SessionDescription, error) {
	parsed := &sdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(desc.SDP)); err != nil {
		return desc, fmt.Errorf("failed to parse description: %w", err)
	}

	for _, media := range parsed.MediaDescriptions {
		switch media.MediaName.Media {
		case "video":
			codec := pickCodec(media, prefs.VideoCodecs)
			if codec == "" {
				continue
			}
			pts := preferCodec(media, codec)
			params := map[string]string{}
			if prefs.MaxBitrateKbps > 0 {
				params[fmtpMaxBitrate] = strconv.Itoa(prefs.MaxBitrateKbps)
				setBandwidth(media, bandwidthAS, uint64(prefs.MaxBitrateKbps))
			}
			if prefs.MinBitrateKbps > 0 {
				params[fmtpMinBitrate] = strconv.Itoa(prefs.MinBitrateKbps)
			}
			for _, pt := range pts {
				setFmtpParams(media, pt, []string{fmtpMaxBitrate, fmtpMinBitrate}, params)
			}

		case "audio":
			codec := pickCodec(media, []string{prefs.AudioCodec})
			if codec == "" {
				continue
			}
			pts := preferCodec(media, codec)
			if strings.EqualFold(codec, "opus") {
				for _, pt := range pts {
					setFmtpParams(media, pt, []string{fmtpInbandFEC}, map[string]string{fmtpInbandFEC: "1"})
				}
			}
		}
	}

	out, err := parsed.Marshal()
	if err != nil {
		return desc, fmt.Errorf("failed to marshal description: %w", err)
	}
	return webrtc.SessionDescription{Type: desc.Type, SDP: string(out)}, nil
}

// rtpmaps returns payload type -> codec name for one media section.
func rtpmaps(media *sdp.MediaDescription) map[string]string {
	names := make(map[string]string)
	for _, attr := range media.Attributes {
		if attr.Key != "rtpmap" {
			continue
		}
		pt, rest, ok := strings.Cut(attr.Value, " ")
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(rest, "/")
		names[pt] = name
	}
	return names
}

func pickCodec(media *sdp.MediaDescription, prefs []string) string {
	names := rtpmaps(media)
	for _, want := range prefs {
		if want == "" {
			continue
		}
		for _, pt := range media.MediaName.Formats {
			if strings.EqualFold(names[pt], want) {
				return names[pt]
			}
		}
	}
	return ""
}

// preferCodec moves every payload type of codec to the front, keeping the
// relative order of both groups, and returns the moved payload types.
func preferCodec(media *sdp.MediaDescription, codec string) []string {
	names := rtpmaps(media)
	var preferred, rest []string
	for _, pt := range media.MediaName.Formats {
		if strings.EqualFold(names[pt], codec) {
			preferred = append(preferred, pt)
		} else {
			rest = append(rest, pt)
		}
	}
	media.MediaName.Formats = append(append(make([]string, 0, len(preferred)+len(rest)), preferred...), rest...)
	return preferred
}

// setFmtpParams sets keys (in that order) on the fmtp line of pt, adding the
// line if it does not exist. Keys missing from values are left untouched.
func setFmtpParams(media *sdp.MediaDescription, pt string, keys []string, values map[string]string) {
	for i, attr := range media.Attributes {
		if attr.Key != "fmtp" {
			continue
		}
		attrPT, params, _ := strings.Cut(attr.Value, " ")
		if attrPT != pt {
			continue
		}
		media.Attributes[i].Value = pt + " " + mergeParams(params, keys, values)
		return
	}

	if merged := mergeParams("", keys, values); merged != "" {
		media.Attributes = append(media.Attributes, sdp.NewAttribute("fmtp", pt+" "+merged))
	}
}

func mergeParams(params string, keys []string, values map[string]string) string {
	var parts []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(params, ";") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key, _, _ := strings.Cut(p, "=")
		if v, ok := values[key]; ok {
			p = key + "=" + v
			seen[key] = true
		}
		parts = append(parts, p)
	}
	for _, key := range keys {
		if v, ok := values[key]; ok && !seen[key] {
			parts = append(parts, key+"="+v)
		}
	}
	return strings.Join(parts, ";")
}

func setBandwidth(media *sdp.MediaDescription, bwType string, value uint64) {
	kept := media.Bandwidth[:0]
	for _, bw := range media.Bandwidth {
		if bw.Type != bwType {
			kept = append(kept, bw)
		}
	}
	media.Bandwidth = append(kept, sdp.Bandwidth{Type: bwType, Bandwidth: value})
}
