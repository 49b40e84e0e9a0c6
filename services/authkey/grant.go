package authkey

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nvbf/tournament-desk/models"
)

const (
	grantTTL = 2 * time.Minute

	audienceGrant  = "grant"
	audienceIssuer = "issuer"
)

var (
	ErrInvalidGrant  = errors.New("invalid grant")
	ErrInvalidIssuer = errors.New("invalid issuer proof")
)

// GrantClaims carry the authority's decision to the redeeming session.
// Subject is the redeeming session id, ID the redeem request id.
type GrantClaims struct {
	TournamentID string      `json:"tournamentId"`
	Scope        models.Role `json:"scope"`
	jwt.RegisteredClaims
}

// IssuerClaims vouch that the pushing session was allowed to issue keys for TournamentID.
// Subject is the issuing session id, ID the key uuid.
type IssuerClaims struct {
	TournamentID string `json:"tournamentId"`
	Admin        bool   `json:"admin"`
	jwt.RegisteredClaims
}

// GrantSigner signs and verifies grants and issuer proofs with a secret shared by the desks on a channel.
type GrantSigner struct {
	secret []byte
	now    func() time.Time
}

func NewGrantSigner(secret string, now func() time.Time) *GrantSigner {
	if now == nil {
		now = time.Now
	}
	return &GrantSigner{secret: []byte(secret), now: now}
}

func (s *GrantSigner) registered(audience, subject, id string) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{audience},
		Subject:   subject,
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(grantTTL)),
	}
}

func (s *GrantSigner) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *GrantSigner) parse(token, audience string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithAudience(audience))
	return err
}

func (s *GrantSigner) Sign(sessionID, requestID string, key models.AuthorizationKey) (string, error) {
	claims := &GrantClaims{
		TournamentID:     key.TournamentID,
		Scope:            key.Scope,
		RegisteredClaims: s.registered(audienceGrant, sessionID, requestID),
	}
	signed, err := s.sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign grant: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and that the grant answers requestID for sessionID.
func (s *GrantSigner) Verify(token, sessionID, requestID string) (*GrantClaims, error) {
	claims := &GrantClaims{}
	if err := s.parse(token, audienceGrant, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGrant, err)
	}
	if claims.Subject != sessionID || claims.ID != requestID {
		return nil, fmt.Errorf("%w: issued for another request", ErrInvalidGrant)
	}
	if !claims.Scope.IsValid() {
		return nil, fmt.Errorf("%w: scope %q", ErrInvalidGrant, claims.Scope)
	}
	return claims, nil
}

// SignIssuer proves to the authority that sessionID may push keyUUID for tournamentID.
func (s *GrantSigner) SignIssuer(sessionID, keyUUID, tournamentID string, admin bool) (string, error) {
	claims := &IssuerClaims{
		TournamentID:     tournamentID,
		Admin:            admin,
		RegisteredClaims: s.registered(audienceIssuer, sessionID, keyUUID),
	}
	signed, err := s.sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign issuer proof: %w", err)
	}
	return signed, nil
}

// VerifyIssuer checks that token was issued to sessionID for keyUUID.
func (s *GrantSigner) VerifyIssuer(token, sessionID, keyUUID string) (*IssuerClaims, error) {
	claims := &IssuerClaims{}
	if err := s.parse(token, audienceIssuer, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIssuer, err)
	}
	if claims.Subject != sessionID || claims.ID != keyUUID {
		return nil, fmt.Errorf("%w: issued for another key", ErrInvalidIssuer)
	}
	return claims, nil
}
