// ABOUTME: Spotify metadata lookup used to turn track links into search queries
// ABOUTME: Uses the client-credentials flow for the Web API and oEmbed as a fallback
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

var (
	ErrSpotifyCredentials = errors.New("spotify client id/secret not configured")
	ErrNotSpotifyTrack    = errors.New("not a spotify track link")
)

const (
	spotifyAccountsURL = "https://accounts.spotify.com/api/token"
	spotifyAPIURL      = "https://api.spotify.com/v1"
	spotifyOEmbedURL   = "https://open.spotify.com/oembed"
)

// SpotifyClient fetches track metadata for search query synthesis
type SpotifyClient struct {
	ClientID     string
	ClientSecret string

	AccountsURL string
	APIURL      string
	OEmbedURL   string
	HTTP        *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewSpotifyClient creates a client against the public Spotify endpoints
func NewSpotifyClient(clientID, clientSecret string) *SpotifyClient {
	return &SpotifyClient{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AccountsURL:  spotifyAccountsURL,
		APIURL:       spotifyAPIURL,
		OEmbedURL:    spotifyOEmbedURL,
		HTTP:         &http.Client{Timeout: 10 * time.Second},
	}
}

// HasCredentials reports whether both client id and secret are set
func (c *SpotifyClient) HasCredentials() bool {
	return c != nil && c.ClientID != "" && c.ClientSecret != ""
}

// TrackID extracts the track id from an open.spotify.com link
func TrackID(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", ErrNotSpotifyTrack
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "track" && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}
	return "", ErrNotSpotifyTrack
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns a cached token, refreshing it shortly before expiry
func (c *SpotifyClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AccountsURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok tokenResponse
	if err := c.doJSON(req, &tok); err != nil {
		return "", fmt.Errorf("spotify token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("spotify token: empty access token")
	}

	c.token = tok.AccessToken
	c.expires = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - 30*time.Second)
	return c.token, nil
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyTrack struct {
	Name    string          `json:"name"`
	Artists []spotifyArtist `json:"artists"`
}

// TrackQuery returns "<artists> - <title>" for a track link
func (c *SpotifyClient) TrackQuery(ctx context.Context, link string) (string, error) {
	id, err := TrackID(link)
	if err != nil {
		return "", err
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL+"/tracks/"+url.PathEscape(id), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var track spotifyTrack
	if err := c.doJSON(req, &track); err != nil {
		return "", fmt.Errorf("spotify track %s: %w", id, err)
	}
	if track.Name == "" {
		return "", fmt.Errorf("spotify track %s: missing name", id)
	}

	artists := lo.Compact(lo.Map(track.Artists, func(a spotifyArtist, _ int) string {
		return a.Name
	}))
	if len(artists) == 0 {
		return track.Name, nil
	}
	return strings.Join(artists, ", ") + " - " + track.Name, nil
}

// OEmbedTitle returns the title from the public oEmbed endpoint
func (c *SpotifyClient) OEmbedTitle(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.OEmbedURL+"?url="+url.QueryEscape(link), nil)
	if err != nil {
		return "", err
	}

	var body struct {
		Title string `json:"title"`
	}
	if err := c.doJSON(req, &body); err != nil {
		return "", fmt.Errorf("spotify oembed: %w", err)
	}
	if strings.TrimSpace(body.Title) == "" {
		return "", errors.New("spotify oembed: empty title")
	}
	return strings.TrimSpace(body.Title), nil
}

func (c *SpotifyClient) doJSON(req *http.Request, v any) error {
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
