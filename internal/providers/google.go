package providers

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"github.com/hivecraft/identity-core/internal/repository/ports"
)

// Google exchanges the authorization code for an OpenID Connect ID token and
// validates it against Google's keys instead of trusting the userinfo
// endpoint.
type Google struct {
	cfg *oauth2.Config
}

func NewGoogle(clientID, clientSecret, callbackURL string) *Google {
	return &Google{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

func (g *Google) Name() string { return "google" }

func (g *Google) AuthorizationURL(state string) (string, error) {
	if g.cfg.ClientID == "" {
		return "", errors.New("google client id is not configured")
	}
	return g.cfg.AuthCodeURL(state), nil
}

func (g *Google) Exchange(ctx context.Context, code string) (*ports.ProviderIdentity, error) {
	token, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return nil, errors.New("token response carried no id_token")
	}
	payload, err := idtoken.Validate(ctx, raw, g.cfg.ClientID)
	if err != nil {
		return nil, fmt.Errorf("validate id_token: %w", err)
	}
	email, _ := payload.Claims["email"].(string)
	name, _ := payload.Claims["name"].(string)
	return &ports.ProviderIdentity{
		ProviderUserID: payload.Subject,
		Email:          email,
		Name:           name,
	}, nil
}
