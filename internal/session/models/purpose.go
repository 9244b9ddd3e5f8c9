package models

import (
	"fmt"
	"strings"
)

// Channel is a notification channel for one-time codes.
type Channel string

const (
	ChannelEmail   Channel = "EMAIL"
	ChannelSMS     Channel = "SMS"
	ChannelAuthApp Channel = "AUTH_APP"
)

// JourneyType distinguishes the journeys a purpose can belong to. Counters,
// blocks, and codes for the same channel are independent across journey
// types: a phone code during registration never shares a budget with a phone
// code during sign-in.
type JourneyType string

const (
	JourneyRegistration    JourneyType = "REGISTRATION"
	JourneySignIn          JourneyType = "SIGN_IN"
	JourneyAccountRecovery JourneyType = "ACCOUNT_RECOVERY"
)

// Purpose identifies which counters, blocks, and code records apply.
type Purpose struct {
	Channel Channel
	Journey JourneyType
}

// MarshalText lets Purpose serve as a JSON map key in persisted sessions.
func (p Purpose) MarshalText() ([]byte, error) {
	return []byte(string(p.Channel) + "/" + string(p.Journey)), nil
}

func (p *Purpose) UnmarshalText(text []byte) error {
	s := string(text)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		p.Channel = Channel(s[:i])
		p.Journey = JourneyType(s[i+1:])
		return nil
	}
	return fmt.Errorf("malformed purpose key %q", s)
}

// AllPurposes enumerates every (channel, journey) pair the session tracks.
// Session construction zeroes a counter for each so bookkeeping never
// branches on map presence.
func AllPurposes() []Purpose {
	channels := []Channel{ChannelEmail, ChannelSMS, ChannelAuthApp}
	journeys := []JourneyType{JourneyRegistration, JourneySignIn, JourneyAccountRecovery}
	out := make([]Purpose, 0, len(channels)*len(journeys))
	for _, c := range channels {
		for _, j := range journeys {
			out = append(out, Purpose{Channel: c, Journey: j})
		}
	}
	return out
}
