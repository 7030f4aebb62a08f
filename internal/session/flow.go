package session

import (
	"time"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
	"github.com/amoylab/oauthprobe/internal/database"
)

// FlowStatus is the position of an authorization flow in its state machine:
// idle -> awaiting_callback -> exchanging -> complete | failed
type FlowStatus string

const (
	FlowIdle             FlowStatus = "idle"
	FlowAwaitingCallback FlowStatus = "awaiting_callback"
	FlowExchanging       FlowStatus = "exchanging"
	FlowComplete         FlowStatus = "complete"
	FlowFailed           FlowStatus = "failed"
)

func (s FlowStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transition is possible
func (s FlowStatus) Terminal() bool {
	return s == FlowComplete || s == FlowFailed
}

// FlowState is one in-flight authorization attempt. Client and Provider are
// copies taken when the flow started.
type FlowState struct {
	ID           string             `json:"id"`
	GrantType    cnst.GrantType     `json:"grant_type"`
	Client       *database.Client   `json:"-"`
	Provider     *database.Provider `json:"-"`
	ClientID     string             `json:"client_id"`
	ProviderName string             `json:"provider_name"`
	Nonce        string             `json:"-"`
	RedirectURI  string             `json:"redirect_uri"`
	Status       FlowStatus         `json:"status"`
	Error        string             `json:"error,omitempty"`
	TokenID      string             `json:"token_id,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Transition moves the flow to status and stamps the change
func (f *FlowState) Transition(status FlowStatus) {
	f.Status = status
	f.UpdatedAt = time.Now()
}

// Fail moves the flow to failed and records why
func (f *FlowState) Fail(err error) {
	f.Transition(FlowFailed)
	if err != nil {
		f.Error = err.Error()
	}
}
