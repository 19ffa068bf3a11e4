package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DeviceState is the slice of local storage the anonymous provider needs
// to keep one stable user id per device.
type DeviceState interface {
	DeviceUserID() (string, bool, error)
	SetDeviceUserID(id string) error
}

// AnonymousProvider assigns a random user id on first use and reuses it on
// every later session on the same device.
type AnonymousProvider struct {
	state DeviceState
}

func NewAnonymousProvider(state DeviceState) *AnonymousProvider {
	return &AnonymousProvider{state: state}
}

func (p *AnonymousProvider) Authenticate(ctx context.Context) (string, error) {
	id, ok, err := p.state.DeviceUserID()
	if err != nil {
		return "", fmt.Errorf("loading device identity: %w", err)
	}
	if ok {
		return id, nil
	}
	id = uuid.New().String()
	if err := p.state.SetDeviceUserID(id); err != nil {
		return "", fmt.Errorf("saving device identity: %w", err)
	}
	return id, nil
}

// TokenProvider derives the user id from a bearer token's subject claim.
// The token stays opaque to the rest of the client; the log store verifies
// the signature when the websocket dials with it. A token that does not
// even parse is rejected here so the failure surfaces before any network
// round trip.
type TokenProvider struct {
	token string
}

func NewTokenProvider(token string) *TokenProvider {
	return &TokenProvider{token: token}
}

func (p *TokenProvider) Authenticate(ctx context.Context) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(p.token, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject: %w", err)
	}
	return sub, nil
}

// ProviderFor picks the token provider when a credential was supplied and
// the anonymous provider otherwise.
func ProviderFor(token string, state DeviceState) Provider {
	if token != "" {
		return NewTokenProvider(token)
	}
	return NewAnonymousProvider(state)
}
