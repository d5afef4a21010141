// Package messaging defines the messages exchanged between surfaces and
// the content engine.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"

	"countryfilter/internal/models"
)

// Action names a request verb or an outbound notification.
type Action string

const (
	ActionScanLocations  Action = "scanLocations"
	ActionGetStats       Action = "getStats"
	ActionResetStats     Action = "resetStats"
	ActionUpdateSettings Action = "updateSettings"
	ActionGetSettings    Action = "getSettings"

	// ActionUpdateBadge is sent by the engine and never answered.
	ActionUpdateBadge Action = "updateBadge"
)

// Reply statuses
const (
	StatusScanning        = "scanning"
	StatusStatsReset      = "stats reset"
	StatusSettingsUpdated = "settings updated"
)

var (
	// ErrUnknownAction is returned for verbs the engine does not handle.
	ErrUnknownAction = errors.New("unknown action")
	// ErrNoReply signals that no answer arrived in time. Callers must treat
	// the engine state as unknown rather than empty.
	ErrNoReply = errors.New("no reply")
	// ErrMissingSettings is returned for updateSettings without a payload.
	ErrMissingSettings = errors.New("updateSettings requires settings")
)

// Request is sent by a surface. ID correlates the Response on transports
// that multiplex several requests.
//
// ExpectedVersion makes updateSettings conditional: the save fails when the
// stored settings are at a different version. Zero saves unconditionally.
type Request struct {
	ID              uint64           `json:"id,omitempty"`
	Action          Action           `json:"action"`
	Settings        *models.Settings `json:"settings,omitempty"`
	ExpectedVersion uint64           `json:"expectedVersion,omitempty"`
}

// Response answers a Request. Only the fields relevant to the action are set.
type Response struct {
	ID                uint64                   `json:"id,omitempty"`
	Status            string                   `json:"status,omitempty"`
	Stats             *models.Stats            `json:"stats,omitempty"`
	DetectedCountries models.DetectedCountries `json:"detectedCountries,omitempty"`
	Settings          *models.Settings         `json:"settings,omitempty"`
	Error             string                   `json:"error,omitempty"`
}

// Outbound is a notification pushed by the engine to every surface.
type Outbound struct {
	Action Action `json:"action"`
	Count  uint64 `json:"count"`
}

// Known reports whether a is a request verb the engine answers.
func (a Action) Known() bool {
	switch a {
	case ActionScanLocations, ActionGetStats, ActionResetStats, ActionUpdateSettings, ActionGetSettings:
		return true
	}
	return false
}

// Validate checks that a request can be dispatched.
func (r Request) Validate() error {
	if !r.Action.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, r.Action)
	}
	if r.Action == ActionUpdateSettings && r.Settings == nil {
		return ErrMissingSettings
	}
	return nil
}

// Envelope is any frame on the bridge. Requests carry an action and an
// ID, responses carry an ID, outbound notifications carry only an action.
type Envelope struct {
	Request  *Request
	Response *Response
	Outbound *Outbound
}

type header struct {
	ID     uint64 `json:"id"`
	Action Action `json:"action"`
}

// Decode classifies and parses a JSON frame.
func Decode(payload []byte) (Envelope, error) {
	var p header
	if err := json.Unmarshal(payload, &p); err != nil {
		return Envelope{}, fmt.Errorf("decode message: %w", err)
	}

	switch {
	case p.Action == ActionUpdateBadge:
		var o Outbound
		if err := json.Unmarshal(payload, &o); err != nil {
			return Envelope{}, fmt.Errorf("decode outbound: %w", err)
		}
		return Envelope{Outbound: &o}, nil
	case p.Action != "":
		var r Request
		if err := json.Unmarshal(payload, &r); err != nil {
			return Envelope{}, fmt.Errorf("decode request: %w", err)
		}
		return Envelope{Request: &r}, nil
	default:
		var r Response
		if err := json.Unmarshal(payload, &r); err != nil {
			return Envelope{}, fmt.Errorf("decode response: %w", err)
		}
		return Envelope{Response: &r}, nil
	}
}
