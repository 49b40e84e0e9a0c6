package authkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nvbf/tournament-desk/models"
	"github.com/nvbf/tournament-desk/pkg/authKey"
	"github.com/nvbf/tournament-desk/pkg/metrics"
	timehelper "github.com/nvbf/tournament-desk/pkg/timeHelper"
	"github.com/nvbf/tournament-desk/repos/realtime"
	"github.com/nvbf/tournament-desk/repos/resend"
	"github.com/nvbf/tournament-desk/services/session"
)

const DefaultRedeemTimeout = 10 * time.Second

var (
	ErrForbidden         = errors.New("session may not issue keys")
	ErrMissingTournament = errors.New("missing tournamentId")
	ErrKeyRejected       = errors.New("authorization key rejected")
	ErrRedeemTimeout     = errors.New("no answer from key authority")
)

// KeyRelay hands a key to someone who is not at the issuing device.
type KeyRelay interface {
	SendKey(ctx context.Context, mail resend.KeyMail) error
}

type issued struct {
	key   IssuedKey
	acked chan struct{}
}

// Exchange is this session's side of the key protocol: it issues keys and redeems keys issued elsewhere.
type Exchange struct {
	channel       realtime.Channel
	session       *session.Session
	signer        *GrantSigner
	relay         KeyRelay
	redeemTimeout time.Duration
	tracer        trace.Tracer
	metrics       *metrics.Metrics
	now           func() time.Time
	log           *slog.Logger

	mu         sync.Mutex
	keys       map[string]*issued
	byUUID     map[string]string
	pendingKey string
	waiters    map[string]chan KeyRedeemedPayload
}

type ExchangeOptions struct {
	Channel       realtime.Channel
	Session       *session.Session
	Signer        *GrantSigner
	Relay         KeyRelay
	RedeemTimeout time.Duration
	Tracer        trace.Tracer
	Metrics       *metrics.Metrics
	Now           func() time.Time
	Log           *slog.Logger
}

func NewExchange(opts ExchangeOptions) *Exchange {
	e := &Exchange{
		channel:       opts.Channel,
		session:       opts.Session,
		signer:        opts.Signer,
		relay:         opts.Relay,
		redeemTimeout: opts.RedeemTimeout,
		tracer:        opts.Tracer,
		metrics:       opts.Metrics,
		now:           opts.Now,
		log:           opts.Log,
		keys:          make(map[string]*issued),
		byUUID:        make(map[string]string),
		waiters:       make(map[string]chan KeyRedeemedPayload),
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.redeemTimeout <= 0 {
		e.redeemTimeout = DefaultRedeemTimeout
	}
	return e
}

func (e *Exchange) Start() error {
	if err := e.channel.On(ActionSendKey, e.onSendKey); err != nil {
		return err
	}
	return e.channel.On(ActionKeyRedeemed, e.onKeyRedeemed)
}

// Issue creates a key and pushes it to the authority. The returned key is ready to show to the operator.
func (e *Exchange) Issue(ctx context.Context, req IssueRequest) (*IssuedKey, error) {
	if !e.session.Allows(models.PermissionIssueKeys, req.TournamentID) {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(req.TournamentID) == "" {
		return nil, ErrMissingTournament
	}
	if req.Scope == "" {
		req.Scope = models.RoleOfficial
	}
	if !req.Scope.IsValid() {
		return nil, session.ErrInvalidRole
	}
	oneTime := true
	if req.OneTime != nil {
		oneTime = *req.OneTime
	}
	requesterIsAdmin := e.session.HasRoleFor(models.RoleAdmin, req.TournamentID)
	keyUUID := authKey.NewKeyUUID()
	proof, err := e.signer.SignIssuer(e.channel.SessionID(), keyUUID, req.TournamentID, requesterIsAdmin)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	at := e.now()
	value := authKey.Generate(at)
	for e.keys[value] != nil {
		at = at.Add(time.Millisecond)
		value = authKey.Generate(at)
	}
	entry := &issued{
		key: IssuedKey{
			Key:          value,
			KeyUUID:      keyUUID,
			TournamentID: req.TournamentID,
			Scope:        req.Scope,
			OneTime:      oneTime,
			IssuedAt:     timehelper.Millis(at),
			State:        KeyIssued,
		},
		acked: make(chan struct{}),
	}
	e.keys[value] = entry
	e.byUUID[entry.key.KeyUUID] = value
	e.mu.Unlock()

	push := PushKeyPayload{
		KeyUUID: entry.key.KeyUUID,
		Content: KeyContent{
			Key:              value,
			OneTime:          oneTime,
			Directive:        DirectiveAuthorize,
			TournamentID:     req.TournamentID,
			RequesterIsAdmin: requesterIsAdmin,
			Scope:            req.Scope,
			IssuedAt:         entry.key.IssuedAt,
		},
		CheckAuth: CheckAuth{Admin: requesterIsAdmin, TournamentID: req.TournamentID},
		Issuer:    proof,
	}
	send := req.Send
	err = e.channel.Emit(ctx, ActionPushKey, push, func() { e.acknowledge(value, send) })
	if err != nil {
		e.mu.Lock()
		delete(e.keys, value)
		delete(e.byUUID, entry.key.KeyUUID)
		e.mu.Unlock()
		return nil, fmt.Errorf("pushing key: %w", err)
	}
	e.metrics.KeysIssued.Inc()
	e.log.InfoContext(ctx, "Key issued",
		slog.String("key_uuid", entry.key.KeyUUID),
		slog.String("tournament_id", req.TournamentID),
		slog.String("scope", req.Scope.String()),
		slog.Bool("one_time", oneTime),
	)

	result := e.snapshot(value)
	if req.RelayTo != "" && e.relay != nil {
		err := e.relay.SendKey(ctx, resend.KeyMail{
			To:           req.RelayTo,
			Key:          value,
			TournamentID: req.TournamentID,
			Scope:        req.Scope,
		})
		if err != nil {
			e.log.WarnContext(ctx, "Key relay failed", slog.String("key_uuid", result.KeyUUID), slog.Any("error", err))
		} else {
			result.Relayed = true
		}
	}
	return &result, nil
}

// acknowledge runs once the push was accepted by the channel.
func (e *Exchange) acknowledge(value string, send bool) {
	e.mu.Lock()
	entry, ok := e.keys[value]
	if !ok {
		e.mu.Unlock()
		return
	}
	if entry.key.State == KeyIssued {
		entry.key.State = KeyAcknowledged
	}
	close(entry.acked)
	e.mu.Unlock()

	if !send {
		return
	}
	ctx := context.Background()
	if err := e.channel.Emit(ctx, ActionSendKey, SendKeyPayload{Key: strings.TrimSpace(value)}, nil); err != nil {
		e.log.ErrorContext(ctx, "Failed to send key", slog.Any("error", err))
	}
}

func (e *Exchange) snapshot(value string) IssuedKey {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keys[value].key
}

// State reports where an issued key is in its lifecycle.
func (e *Exchange) State(key string) (KeyState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.keys[authKey.Normalize(key)]
	if !ok {
		return "", false
	}
	return entry.key.State, true
}

// Acknowledged is closed once the push of key was acknowledged. It is nil for keys this session did not issue.
func (e *Exchange) Acknowledged(key string) <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.keys[authKey.Normalize(key)]
	if !ok {
		return nil
	}
	return entry.acked
}

// PendingKey is the last key another session sent to be displayed here.
func (e *Exchange) PendingKey() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pendingKey
}

func (e *Exchange) onSendKey(ctx context.Context, event realtime.Event) {
	if event.Origin == e.channel.SessionID() {
		return
	}
	payload, err := realtime.Decode[SendKeyPayload](event)
	if err != nil {
		e.log.WarnContext(ctx, "Dropping sent key", slog.Any("error", err))
		return
	}
	e.mu.Lock()
	e.pendingKey = authKey.Normalize(payload.Key)
	e.mu.Unlock()
}

func (e *Exchange) onKeyRedeemed(ctx context.Context, event realtime.Event) {
	payload, err := realtime.Decode[KeyRedeemedPayload](event)
	if err != nil {
		e.log.WarnContext(ctx, "Dropping redeem answer", slog.Any("error", err))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if waiter, ok := e.waiters[payload.RequestID]; ok {
		select {
		case waiter <- payload:
		default:
		}
	}
	value, ok := e.byUUID[payload.KeyUUID]
	if !ok {
		return
	}
	entry := e.keys[value]
	switch {
	case payload.Granted:
		entry.key.State = KeyRedeemed
	case entry.key.State != KeyRedeemed:
		entry.key.State = KeyRejected
	}
}

// Redeem asks the authority to honour key and, when it does, applies the granted scope to this session.
// On any failure the session is left as it was.
func (e *Exchange) Redeem(ctx context.Context, key string) (session.Authorization, error) {
	value := authKey.Normalize(key)
	if err := authKey.Validate(value); err != nil {
		return session.Authorization{}, fmt.Errorf("%w: %w", ErrKeyRejected, err)
	}

	requestID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "authkey.redeem", trace.WithAttributes(attribute.String("request_id", requestID)))
	defer span.End()

	answer := make(chan KeyRedeemedPayload, 1)
	e.mu.Lock()
	e.waiters[requestID] = answer
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.waiters, requestID)
		e.mu.Unlock()
	}()

	if err := e.channel.Emit(ctx, ActionRedeemKey, RedeemKeyPayload{RequestID: requestID, Key: value}, nil); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return session.Authorization{}, fmt.Errorf("requesting redemption: %w", err)
	}

	timer := time.NewTimer(e.redeemTimeout)
	defer timer.Stop()
	var reply KeyRedeemedPayload
	select {
	case reply = <-answer:
	case <-timer.C:
		span.SetStatus(codes.Error, "timeout")
		return session.Authorization{}, ErrRedeemTimeout
	case <-ctx.Done():
		return session.Authorization{}, ctx.Err()
	}

	if !reply.Granted {
		span.SetStatus(codes.Error, reply.Error)
		return session.Authorization{}, fmt.Errorf("%w: %s", ErrKeyRejected, reply.Error)
	}
	claims, err := e.signer.Verify(reply.Grant, e.channel.SessionID(), requestID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return session.Authorization{}, fmt.Errorf("%w: %w", ErrKeyRejected, err)
	}
	if err := e.session.Grant(claims.Scope, claims.TournamentID); err != nil {
		return session.Authorization{}, fmt.Errorf("%w: %w", ErrKeyRejected, err)
	}
	e.log.InfoContext(ctx, "Key redeemed",
		slog.String("request_id", requestID),
		slog.String("tournament_id", claims.TournamentID),
		slog.String("scope", claims.Scope.String()),
	)
	return e.session.Snapshot(), nil
}

// Session returns what this session may currently do.
func (e *Exchange) Session() session.Authorization {
	return e.session.Snapshot()
}
