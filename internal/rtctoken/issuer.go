package rtctoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"videocall-platform/internal/config"
)

// ErrCredentialUnavailable means the issuer has no provider credentials
// configured. Callers map it to a service-unavailable response; the
// call lifecycle itself is not affected.
var ErrCredentialUnavailable = errors.New("rtctoken: credential provider unavailable")

// Credential is a short-lived join grant for one participant in one
// media room. The token never outlives CredentialTTL; clients rejoin
// with a fresh one rather than refreshing.
type Credential struct {
	Token         string    `json:"token"`
	AppID         string    `json:"app_id"`
	ChannelName   string    `json:"channel_name"`
	ParticipantID string    `json:"participant_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type Claims struct {
	jwt.RegisteredClaims
	ChannelName   string `json:"channel_name"`
	ParticipantID string `json:"participant_id"`
}

// Issuer signs media-room join credentials with the provider app
// secret. It is stateless; a zero-configured issuer stays constructible
// and fails per-request, so the rest of the API keeps working without
// provider credentials.
type Issuer struct {
	appID  string
	secret []byte
	ttl    time.Duration
}

func NewIssuer(cfg config.RTCConfig) *Issuer {
	ttl := cfg.CredentialTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{
		appID:  cfg.AppID,
		secret: []byte(cfg.AppSecret),
		ttl:    ttl,
	}
}

// Issue signs a join credential for the participant in the channel.
func (i *Issuer) Issue(now time.Time, channelName, participantID string) (Credential, error) {
	if i.appID == "" || len(i.secret) == 0 {
		return Credential{}, ErrCredentialUnavailable
	}
	if channelName == "" || participantID == "" {
		return Credential{}, errors.New("rtctoken: channel and participant are required")
	}

	expiresAt := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.appID,
			Subject:   participantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		ChannelName:   channelName,
		ParticipantID: participantID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Credential{}, fmt.Errorf("sign credential: %w", err)
	}

	return Credential{
		Token:         signed,
		AppID:         i.appID,
		ChannelName:   channelName,
		ParticipantID: participantID,
		ExpiresAt:     expiresAt,
	}, nil
}

// Verify parses and validates a join credential at "now".
func (i *Issuer) Verify(token string, now time.Time) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if _, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}); err != nil {
		return Claims{}, err
	}

	if claims.ChannelName == "" || claims.ParticipantID == "" {
		return Claims{}, errors.New("rtctoken: channel or participant missing")
	}
	return claims, nil
}
