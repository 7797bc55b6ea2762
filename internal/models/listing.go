// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package models

import "time"

// Listing is a real-estate listing as read from the external store.
// Listings are immutable from this service's perspective; only the derived
// score rows are written back.
type Listing struct {
	// ID is the listing identifier, the monotonic pagination key.
	ID int64 `json:"listing_id"`

	// DongID is the neighborhood (administrative "dong") identifier.
	DongID int32 `json:"dong_id"`

	// Lat and Lon are the listing coordinates in degrees.
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// Price is the listing price in 10k KRW units.
	Price int64 `json:"price,omitempty"`

	// RoomType is the room-count bucket (원룸, 투룸, ...).
	RoomType string `json:"room_type,omitempty"`

	// ContractType is the contract kind (월세, 전세, 매매).
	ContractType string `json:"contract_type,omitempty"`
}

// CategoryScore is the persisted per-category proximity result for a listing.
type CategoryScore struct {
	// Count is the number of POIs within the scoring radius.
	Count int `json:"count"`

	// Score is the count/distance blend: alpha*count + beta*(1/(1+minKm)).
	// Deterministic given identical POI data.
	Score float64 `json:"score"`
}

// PropertyScore is the full scored row for one listing: seven CategoryScore
// pairs in canonical category order.
type PropertyScore struct {
	ListingID int64                        `json:"listing_id"`
	Scores    [NumCategories]CategoryScore `json:"scores"`
}

// Vector extracts the score components in canonical order.
func (p PropertyScore) Vector() Vector {
	var v Vector
	for i := range p.Scores {
		v[i] = p.Scores[i].Score
	}
	return v
}

// Candidate is one scored listing as held by the ranking stage: the seven
// category scores joined with the listing attributes the ranker filters on.
type Candidate struct {
	ListingID    int64
	DongID       int32
	Lat          float64
	Lon          float64
	Price        int64
	RoomType     string
	ContractType string
	Scores       Vector
}

// ScoreStats holds per-category aggregate statistics over the scored
// listing population, used to normalize candidate columns.
type ScoreStats struct {
	Min  Vector
	Max  Vector
	Mean Vector
	Std  Vector
}

// UserPreference holds a user's survey answers: binary importance flags per
// category, an optional work/school coordinate, and a preferred neighborhood.
// Owned by the user-facing application; read-only here.
type UserPreference struct {
	UserID int64

	// Gender is "male" or "female"; anything else falls back to the
	// male demographic weights. Age is in years, 0 when unknown.
	Gender string
	Age    int

	// Flags holds the 0/1 importance flag per category in canonical order.
	Flags [NumCategories]int

	// DongID is the preference-stored neighborhood, 0 when unset.
	DongID int32

	// OfficeLat/OfficeLon is the work or school coordinate.
	// Valid only when HasOffice is true.
	OfficeLat float64
	OfficeLon float64
	HasOffice bool
}

// FlagVector returns the importance flags as a 0/1 vector.
func (p UserPreference) FlagVector() Vector {
	var v Vector
	for i, f := range p.Flags {
		if f == 1 {
			v[i] = 1
		}
	}
	return v
}

// Action is the kind of a user activity event. The set is open: unknown
// actions are stored and ignored by consumers that filter on intent.
type Action string

// Known activity actions. ActionSave is recorded as "zzim" by the
// front-end instrumentation.
const (
	ActionView    Action = "view"
	ActionSave    Action = "zzim"
	ActionCompare Action = "compare"
	ActionSearch  Action = "search"
	ActionComment Action = "comment"
)

// IntentActions is the subset of actions that signal genuine interest in a
// neighborhood, used by the geography-affinity detector.
var IntentActions = []Action{ActionView, ActionSearch, ActionComment, ActionSave, ActionCompare}

// ImplicitScore maps an action to its implicit-feedback rating for
// collaborative training. Unknown actions score zero and are skipped.
func (a Action) ImplicitScore() float64 {
	switch a {
	case ActionView:
		return 1
	case ActionSearch:
		return 2
	case ActionCompare:
		return 3
	case ActionComment:
		return 4
	case ActionSave:
		return 5
	default:
		return 0
	}
}

// ActivityEvent is one append-only user activity record, produced by external
// instrumentation and consumed here in a recent time window.
type ActivityEvent struct {
	UserID     int64
	ListingID  int64
	Action     Action
	DongID     int32
	OccurredAt time.Time
}
