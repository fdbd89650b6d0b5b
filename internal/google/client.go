package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/daniloc96/google-group-membership-sync/internal/config"
	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

const (
	membersScope = "https://www.googleapis.com/auth/admin.directory.group.member.readonly"
	groupsScope  = "https://www.googleapis.com/auth/admin.directory.group.readonly"

	memberFields = "nextPageToken,members(email,type,status)"

	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

type memberLister interface {
	ListMembers(ctx context.Context, groupKey string, pageToken string, pageSize int64) ([]*admin.Member, string, error)
}

// Client fetches directory group members one page at a time.
type Client struct {
	memberLister   memberLister
	limiter        *rate.Limiter
	pageSize       int64
	requestTimeout time.Duration
	maxRetries     int
	backoff        time.Duration
}

// NewClient creates an Admin SDK Directory client.
// With adminEmail set the credentials must be a service account with
// domain-wide delegation; otherwise they are an OAuth2 refresh token issued
// to an administrator.
func NewClient(ctx context.Context, credentialsJSON []byte, cfg config.GoogleConfig) (*Client, error) {
	if len(credentialsJSON) == 0 {
		return nil, fmt.Errorf("credentials JSON is required")
	}

	ts, err := tokenSource(ctx, credentialsJSON, cfg.AdminEmail)
	if err != nil {
		return nil, err
	}

	svc, err := admin.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}

	return newClient(&directoryService{svc: svc}, cfg), nil
}

func newClient(lister memberLister, cfg config.GoogleConfig) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > config.MaxPageSize {
		pageSize = config.MaxPageSize
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		memberLister:   lister,
		limiter:        rate.NewLimiter(limit, 1),
		pageSize:       pageSize,
		requestTimeout: timeout,
		maxRetries:     cfg.MaxRetries,
		backoff:        initialBackoff,
	}
}

// storedToken covers both the gcloud "authorized_user" file and the
// credential JSON written by the account-connect flow.
type storedToken struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
	TokenURI     string `json:"token_uri"`
}

func tokenSource(ctx context.Context, credentialsJSON []byte, adminEmail string) (oauth2.TokenSource, error) {
	if adminEmail != "" {
		jwtCfg, err := google.JWTConfigFromJSON(credentialsJSON, membersScope, groupsScope)
		if err != nil {
			return nil, err
		}
		jwtCfg.Subject = adminEmail
		return jwtCfg.TokenSource(ctx), nil
	}

	var token storedToken
	if err := json.Unmarshal(credentialsJSON, &token); err != nil {
		return nil, fmt.Errorf("parsing oauth token: %w", err)
	}
	if token.ClientID == "" || token.ClientSecret == "" || token.RefreshToken == "" {
		return nil, fmt.Errorf("oauth token requires client_id, client_secret and refresh_token")
	}
	endpoint := google.Endpoint
	if token.TokenURI != "" {
		endpoint.TokenURL = token.TokenURI
	}
	oauthCfg := &oauth2.Config{
		ClientID:     token.ClientID,
		ClientSecret: token.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{membersScope, groupsScope},
	}
	return oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: token.RefreshToken}), nil
}

// FetchMembersPage returns one page of the group's direct members.
func (c *Client) FetchMembersPage(ctx context.Context, groupKey string, cursor string) ([]models.DirectoryMember, string, error) {
	if groupKey == "" {
		return nil, "", fmt.Errorf("group key is required")
	}

	var (
		items     []*admin.Member
		nextToken string
	)
	err := c.retry(ctx, groupKey, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()

		var err error
		items, nextToken, err = c.memberLister.ListMembers(reqCtx, groupKey, cursor, c.pageSize)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	members := make([]models.DirectoryMember, 0, len(items))
	for _, member := range items {
		if member == nil {
			continue
		}
		members = append(members, models.DirectoryMember{
			Email:  member.Email,
			Type:   member.Type,
			Status: member.Status,
		})
	}
	return members, nextToken, nil
}

func (c *Client) retry(ctx context.Context, groupKey string, fn func() error) error {
	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isRetryableGoogleError(err) || attempt >= c.maxRetries {
			return err
		}
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"group_key": groupKey,
			"attempt":   attempt + 1,
			"backoff":   backoff,
		}).Warn("⚠ directory request failed, retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func isRetryableGoogleError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
}

type directoryService struct {
	svc *admin.Service
}

func (d *directoryService) ListMembers(ctx context.Context, groupKey string, pageToken string, pageSize int64) ([]*admin.Member, string, error) {
	call := d.svc.Members.List(groupKey).MaxResults(pageSize).Fields(googleapi.Field(memberFields))
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, "", err
	}
	return resp.Members, resp.NextPageToken, nil
}
