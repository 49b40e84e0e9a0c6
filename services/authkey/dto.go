package authkey

import "github.com/nvbf/tournament-desk/models"

// Actions exchanged over the real-time channel.
const (
	ActionPushKey     = "PUSH_KEY"
	ActionSendKey     = "SEND_KEY"
	ActionRedeemKey   = "REDEEM_KEY"
	ActionKeyRedeemed = "KEY_REDEEMED"

	DirectiveAuthorize = "authorize"
)

type KeyState string

const (
	KeyIssued       KeyState = "ISSUED"
	KeyAcknowledged KeyState = "ACKNOWLEDGED"
	KeyRedeemed     KeyState = "REDEEMED"
	KeyRejected     KeyState = "REJECTED"
)

// PushKeyPayload hands a new key to the authority. Issuer is the signed proof that the
// emitting session holds the issue_keys permission for the tournament.
type PushKeyPayload struct {
	KeyUUID   string     `json:"key_uuid"`
	Content   KeyContent `json:"content"`
	CheckAuth CheckAuth  `json:"checkAuth"`
	Issuer    string     `json:"issuer"`
}

type KeyContent struct {
	Key              string      `json:"key"`
	OneTime          bool        `json:"onetime"`
	Directive        string      `json:"directive"`
	TournamentID     string      `json:"tournamentId"`
	RequesterIsAdmin bool        `json:"requesterIsAdmin"`
	Scope            models.Role `json:"scope"`
	IssuedAt         int64       `json:"issuedAt"`
}

// CheckAuth says who may act on a pushed key.
type CheckAuth struct {
	Admin        bool   `json:"admin"`
	TournamentID string `json:"tournamentId"`
}

type SendKeyPayload struct {
	Key string `json:"key"`
}

type RedeemKeyPayload struct {
	RequestID string `json:"requestId"`
	Key       string `json:"key"`
}

type KeyRedeemedPayload struct {
	RequestID string `json:"requestId"`
	KeyUUID   string `json:"key_uuid,omitempty"`
	Granted   bool   `json:"granted"`
	Error     string `json:"error,omitempty"`
	Grant     string `json:"grant,omitempty"`
}

// IssueRequest asks for a key. OneTime defaults to true.
type IssueRequest struct {
	TournamentID string      `json:"tournamentId"`
	Scope        models.Role `json:"scope"`
	OneTime      *bool       `json:"oneTime,omitempty"`
	Send         bool        `json:"send"`
	RelayTo      string      `json:"relayTo,omitempty"`
}

type IssuedKey struct {
	Key          string      `json:"key"`
	KeyUUID      string      `json:"keyUuid"`
	TournamentID string      `json:"tournamentId"`
	Scope        models.Role `json:"scope"`
	OneTime      bool        `json:"oneTime"`
	IssuedAt     int64       `json:"issuedAt"`
	State        KeyState    `json:"state"`
	Relayed      bool        `json:"relayed"`
}
