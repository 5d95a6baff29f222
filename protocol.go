package main

import (
	"encoding/json"
	"fmt"
	"log"
)

// Intent codes. Inbound frames are "<3-digit-intent><JSON>"; outbound
// frames are a JSON envelope carrying the intent they answer.
const (
	IntentRoster      = 100 // in: attach to session; out: session roster
	IntentLocation    = 101 // in: location report; out: location request
	IntentRadar       = 102 // in: radar query; out: players and items in view
	IntentSpotted     = 103 // out only: you appeared on someone's radar
	IntentLeaderboard = 107 // in: leaderboard request; out: standings
	IntentError       = 400 // out only
)

// Outbound is the push envelope. The roster push carries the session
// passcode as a top-level sibling of object; every other intent omits it.
type Outbound struct {
	Intent   int         `json:"intent"`
	Reason   string      `json:"reason"`
	Object   interface{} `json:"object"`
	Passcode *int        `json:"passcode,omitempty"`
}

type RosterUser struct {
	Username string `json:"username"`
}

type RosterPayload struct {
	Users []RosterUser `json:"users"`
}

// WireLocation is the coordinate shape sent to clients. Accuracy stays
// server-side.
type WireLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type RadarUser struct {
	Username string       `json:"username"`
	Location WireLocation `json:"Location"`
}

type RadarItem struct {
	Name     string       `json:"name"`
	Location WireLocation `json:"Location"`
}

type RadarPayload struct {
	Users []RadarUser `json:"users"`
	Items []RadarItem `json:"items"`
}

type LeaderboardUser struct {
	Username string  `json:"username"`
	KD       float64 `json:"KD Ratio"`
}

type LeaderboardPayload struct {
	Users []LeaderboardUser `json:"users"`
}

// NoticePayload is the object of informational pushes (101 location
// request, 103 spotted).
type NoticePayload struct {
	Message string `json:"Message"`
}

func encodeOutbound(msg Outbound) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return nil
	}
	return data
}

// rosterMessage builds the intent-100 push for a session's member list.
func rosterMessage(usernames []string, passcode int) []byte {
	users := make([]RosterUser, 0, len(usernames))
	for _, name := range usernames {
		users = append(users, RosterUser{Username: name})
	}
	return encodeOutbound(Outbound{
		Intent:   IntentRoster,
		Reason:   "Players in your session",
		Object:   RosterPayload{Users: users},
		Passcode: &passcode,
	})
}

func locationRequestMessage() []byte {
	return encodeOutbound(Outbound{
		Intent: IntentLocation,
		Reason: "Need your location",
		Object: NoticePayload{Message: "Need your location"},
	})
}

func spottedMessage() []byte {
	return encodeOutbound(Outbound{
		Intent: IntentSpotted,
		Reason: "You've been spotted",
		Object: NoticePayload{Message: "You've been spotted"},
	})
}

func radarMessage(users []RadarUser, items []RadarItem) []byte {
	if users == nil {
		users = []RadarUser{}
	}
	if items == nil {
		items = []RadarItem{}
	}
	return encodeOutbound(Outbound{
		Intent: IntentRadar,
		Reason: "Players in your radius",
		Object: RadarPayload{Users: users, Items: items},
	})
}

func leaderboardMessage(entries []LeaderboardEntry) []byte {
	users := make([]LeaderboardUser, 0, len(entries))
	for _, e := range entries {
		users = append(users, LeaderboardUser{Username: e.Username, KD: e.KD})
	}
	return encodeOutbound(Outbound{
		Intent: IntentLeaderboard,
		Reason: "Player leaderboard",
		Object: LeaderboardPayload{Users: users},
	})
}

// errorMessage builds the intent-400 push. The failed intent is echoed in
// the reason; clients match on the "error on intent N" prefix.
func errorMessage(intent int, reason string) []byte {
	return encodeOutbound(Outbound{
		Intent: IntentError,
		Reason: fmt.Sprintf("error on intent %d: %s", intent, reason),
		Object: struct{}{},
	})
}

// parseInbound splits a text frame into its 3-digit intent prefix and the
// JSON body that follows.
func parseInbound(raw []byte) (int, []byte, error) {
	if len(raw) < 3 {
		return 0, nil, fmt.Errorf("message shorter than intent prefix")
	}
	intent := 0
	for _, b := range raw[:3] {
		if b < '0' || b > '9' {
			return 0, nil, fmt.Errorf("malformed intent prefix %q", raw[:3])
		}
		intent = intent*10 + int(b-'0')
	}
	return intent, raw[3:], nil
}
