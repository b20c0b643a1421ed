package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/hivecraft/identity-core/internal/repository/ports"
)

const githubAPIBase = "https://api.github.com"

// GitHub trades the authorization code for an access token and reads the user
// plus their primary verified email from the REST API.
type GitHub struct {
	cfg     *oauth2.Config
	apiBase string
}

func NewGitHub(clientID, clientSecret, callbackURL string) *GitHub {
	return &GitHub{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: githubAPIBase,
	}
}

func (g *GitHub) Name() string { return "github" }

func (g *GitHub) AuthorizationURL(state string) (string, error) {
	if g.cfg.ClientID == "" {
		return "", errors.New("github client id is not configured")
	}
	return g.cfg.AuthCodeURL(state), nil
}

func (g *GitHub) Exchange(ctx context.Context, code string) (*ports.ProviderIdentity, error) {
	token, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	client := g.cfg.Client(ctx, token)

	var user struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := g.getJSON(ctx, client, "/user", &user); err != nil {
		return nil, err
	}

	email := user.Email
	if email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := g.getJSON(ctx, client, "/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}

	return &ports.ProviderIdentity{
		ProviderUserID: strconv.FormatInt(user.ID, 10),
		Email:          email,
		Name:           user.Name,
	}, nil
}

func (g *GitHub) getJSON(ctx context.Context, client *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("github %s: %w", path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s: unexpected status %d", path, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
