package authkey

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nvbf/tournament-desk/models"
	"github.com/nvbf/tournament-desk/pkg/authKey"
	"github.com/nvbf/tournament-desk/pkg/metrics"
	timehelper "github.com/nvbf/tournament-desk/pkg/timeHelper"
	"github.com/nvbf/tournament-desk/repos/realtime"
	"github.com/nvbf/tournament-desk/repos/store"
)

// Reasons an authority gives when it rejects a redemption.
const (
	ReasonMalformed   = "malformed key"
	ReasonUnknown     = "unknown key"
	ReasonUsed        = "key already used"
	ReasonExpired     = "key expired"
	ReasonRateLimited = "too many attempts"
	ReasonUnavailable = "key store unavailable"
)

var ErrPushRefused = errors.New("key push refused")

// Authority stores pushed keys and decides redemptions. Exactly one process on a channel should run it.
type Authority struct {
	channel realtime.Channel
	keys    store.KeyStore
	signer  *GrantSigner
	ttl     time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
	log     *slog.Logger

	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

type AuthorityOptions struct {
	Channel realtime.Channel
	Keys    store.KeyStore
	Signer  *GrantSigner
	// TTL bounds how long after issuance a key can be redeemed. Zero means no expiry.
	TTL         time.Duration
	RedeemRate  rate.Limit
	RedeemBurst int
	Metrics     *metrics.Metrics
	Now         func() time.Time
	Log         *slog.Logger
}

func NewAuthority(opts AuthorityOptions) *Authority {
	a := &Authority{
		channel:  opts.Channel,
		keys:     opts.Keys,
		signer:   opts.Signer,
		ttl:      opts.TTL,
		metrics:  opts.Metrics,
		now:      opts.Now,
		log:      opts.Log,
		limit:    opts.RedeemRate,
		burst:    opts.RedeemBurst,
		limiters: make(map[string]*rate.Limiter),
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.limit == 0 {
		a.limit = rate.Inf
	}
	if a.burst <= 0 {
		a.burst = 1
	}
	return a
}

func (a *Authority) Start() error {
	if err := a.channel.On(ActionPushKey, a.onPushKey); err != nil {
		return err
	}
	return a.channel.On(ActionRedeemKey, a.onRedeemKey)
}

func (a *Authority) onPushKey(ctx context.Context, event realtime.Event) {
	payload, err := realtime.Decode[PushKeyPayload](event)
	if err != nil {
		a.log.WarnContext(ctx, "Dropping key push", slog.Any("error", err))
		return
	}
	if err := a.Store(ctx, event.Origin, payload); err != nil {
		a.log.WarnContext(ctx, "Key push refused",
			slog.String("origin", event.Origin),
			slog.String("key_uuid", payload.KeyUUID),
			slog.Any("error", err),
		)
	}
}

// Store keeps a key pushed by origin so it can be redeemed later. A push is only accepted with an
// issuer proof signed for origin and the key uuid. A replayed push never resets a stored key.
func (a *Authority) Store(ctx context.Context, origin string, payload PushKeyPayload) error {
	issuer, err := a.signer.VerifyIssuer(payload.Issuer, origin, payload.KeyUUID)
	if err != nil {
		return errors.Join(ErrPushRefused, err)
	}

	content := payload.Content
	switch {
	case content.Directive != DirectiveAuthorize:
		return errors.Join(ErrPushRefused, errors.New("unknown directive "+content.Directive))
	case authKey.Validate(content.Key) != nil:
		return errors.Join(ErrPushRefused, authKey.ErrMalformedKey)
	case !content.Scope.IsValid():
		return errors.Join(ErrPushRefused, errors.New("invalid scope"))
	case content.Scope == models.RoleAdmin && !(issuer.Admin && content.RequesterIsAdmin && payload.CheckAuth.Admin):
		return errors.Join(ErrPushRefused, errors.New("admin scope requires an admin issuer"))
	case content.TournamentID == "" || payload.CheckAuth.TournamentID != content.TournamentID ||
		issuer.TournamentID != content.TournamentID:
		return errors.Join(ErrPushRefused, errors.New("tournament mismatch"))
	}

	key := models.AuthorizationKey{
		Value:            content.Key,
		KeyUUID:          payload.KeyUUID,
		IssuedAt:         content.IssuedAt,
		OneTime:          content.OneTime,
		Scope:            content.Scope,
		TournamentID:     content.TournamentID,
		RequesterIsAdmin: content.RequesterIsAdmin,
	}
	if err := a.keys.PutKey(ctx, key, a.expired); err != nil {
		if errors.Is(err, store.ErrKeyExists) {
			return errors.Join(ErrPushRefused, err)
		}
		return err
	}
	a.log.InfoContext(ctx, "Key stored",
		slog.String("key_uuid", key.KeyUUID),
		slog.String("tournament_id", key.TournamentID),
		slog.String("scope", key.Scope.String()),
	)
	return nil
}

func (a *Authority) onRedeemKey(ctx context.Context, event realtime.Event) {
	payload, err := realtime.Decode[RedeemKeyPayload](event)
	if err != nil {
		a.log.WarnContext(ctx, "Dropping redeem request", slog.Any("error", err))
		return
	}
	reply := a.Redeem(ctx, event.Origin, payload)
	if err := a.channel.Emit(ctx, ActionKeyRedeemed, reply, nil); err != nil {
		a.log.ErrorContext(ctx, "Failed to answer redeem request",
			slog.String("request_id", payload.RequestID),
			slog.Any("error", err),
		)
	}
}

// Redeem decides one redemption attempt by sessionID.
func (a *Authority) Redeem(ctx context.Context, sessionID string, req RedeemKeyPayload) KeyRedeemedPayload {
	reply := KeyRedeemedPayload{RequestID: req.RequestID}
	reject := func(reason string) KeyRedeemedPayload {
		reply.Error = reason
		a.metrics.KeyRedemptions.WithLabelValues("rejected").Inc()
		a.log.InfoContext(ctx, "Key redemption rejected",
			slog.String("session_id", sessionID),
			slog.String("request_id", req.RequestID),
			slog.String("reason", reason),
		)
		return reply
	}

	if !a.limiter(sessionID).Allow() {
		return reject(ReasonRateLimited)
	}
	value := authKey.Normalize(req.Key)
	if authKey.Validate(value) != nil {
		return reject(ReasonMalformed)
	}

	key, err := a.keys.ConsumeKey(ctx, value, sessionID, a.expired)
	if key != nil {
		reply.KeyUUID = key.KeyUUID
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return reject(ReasonUnknown)
	case errors.Is(err, store.ErrKeyUsed):
		return reject(ReasonUsed)
	case errors.Is(err, store.ErrKeyExpired):
		return reject(ReasonExpired)
	case err != nil:
		a.log.ErrorContext(ctx, "Failed to consume key", slog.Any("error", err))
		return reject(ReasonUnavailable)
	}

	grant, err := a.signer.Sign(sessionID, req.RequestID, *key)
	if err != nil {
		a.log.ErrorContext(ctx, "Failed to sign grant", slog.Any("error", err))
		return reject(ReasonUnavailable)
	}
	reply.Granted = true
	reply.Grant = grant
	a.metrics.KeyRedemptions.WithLabelValues("granted").Inc()
	a.log.InfoContext(ctx, "Key redeemed",
		slog.String("session_id", sessionID),
		slog.String("key_uuid", key.KeyUUID),
		slog.String("tournament_id", key.TournamentID),
	)
	return reply
}

func (a *Authority) expired(key models.AuthorizationKey) bool {
	return timehelper.Expired(key.IssuedAt, a.ttl, a.now())
}

func (a *Authority) limiter(sessionID string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.limiters[sessionID]
	if !ok {
		l = rate.NewLimiter(a.limit, a.burst)
		a.limiters[sessionID] = l
	}
	return l
}
