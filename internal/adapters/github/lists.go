package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/devbush/submanager/internal/domain"
	"github.com/devbush/submanager/internal/ports"
)

type userEntry struct {
	Login string `json:"login"`
}

// ListPaged fetches pages in order until a short page or maxPages.
func (c *Client) ListPaged(ctx context.Context, resource ports.Resource, user domain.Username, maxPages int) ([]domain.Username, error) {
	if user == "" {
		user = c.username
	}

	var users []domain.Username
	for page := 1; maxPages <= 0 || page <= maxPages; page++ {
		batch, err := c.fetchPage(ctx, resource, user, page)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s of %s: %w", resource, user, err)
		}
		users = append(users, batch...)

		if len(batch) < PerPage {
			break
		}
	}

	c.log.Info("fetched list",
		slog.String("resource", string(resource)),
		slog.String("user", string(user)),
		slog.Int("count", len(users)))
	return users, nil
}

// FollowerPages fetches only the requested follower pages of user. Pages
// past the end of the list are skipped.
func (c *Client) FollowerPages(ctx context.Context, user domain.Username, pages []int) ([]domain.Username, error) {
	var users []domain.Username
	for _, page := range pages {
		if page < 1 {
			continue
		}

		batch, cached := c.cachedPage(user, page)
		if !cached {
			var err error
			batch, err = c.fetchPage(ctx, ports.ResourceFollowers, user, page)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch followers page %d of %s: %w", page, user, err)
			}
			if c.pages != nil {
				c.pages.Add(pageKey{user: user, page: page}, batch)
			}
		}
		users = append(users, batch...)

		if len(batch) < PerPage {
			break
		}
	}
	return users, nil
}

func (c *Client) cachedPage(user domain.Username, page int) ([]domain.Username, bool) {
	if c.pages == nil {
		return nil, false
	}
	return c.pages.Get(pageKey{user: user, page: page})
}

func (c *Client) fetchPage(ctx context.Context, resource ports.Resource, user domain.Username, page int) ([]domain.Username, error) {
	path := fmt.Sprintf("/users/%s/%s", url.PathEscape(string(user)), resource)
	query := url.Values{
		"per_page": {strconv.Itoa(PerPage)},
		"page":     {strconv.Itoa(page)},
	}

	resp, err := c.do(ctx, http.MethodGet, path, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries []userEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode %s page %d: %w", path, page, err)
	}

	users := make([]domain.Username, 0, len(entries))
	for _, e := range entries {
		if e.Login != "" {
			users = append(users, domain.Username(e.Login))
		}
	}
	return users, nil
}

// Mutate follows or unfollows user and reports success.
func (c *Client) Mutate(ctx context.Context, verb ports.Verb, user domain.Username) bool {
	var method string
	switch verb {
	case ports.VerbFollow:
		method = http.MethodPut
	case ports.VerbUnfollow:
		method = http.MethodDelete
	default:
		c.log.Error("unknown verb", slog.String("verb", string(verb)))
		return false
	}

	resp, err := c.do(ctx, method, "/user/following/"+url.PathEscape(string(user)), nil)
	if err != nil {
		level := slog.LevelError
		if isContextErr(err) {
			level = slog.LevelWarn
		}
		c.log.Log(ctx, level, "mutation failed",
			slog.String("verb", string(verb)),
			slog.String("user", string(user)),
			slog.Any("error", err))
		return false
	}
	drain(resp)

	c.log.Info("mutation succeeded",
		slog.String("verb", string(verb)),
		slog.String("user", string(user)))
	return true
}

// IsFollowing reports whether the authenticated account follows user.
func (c *Client) IsFollowing(ctx context.Context, user domain.Username) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/user/following/"+url.PathEscape(string(user)), nil)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	drain(resp)
	return true, nil
}

// CheckConnectivity performs an authenticated request against the
// rate-limit endpoint, which does not consume quota.
func (c *Client) CheckConnectivity(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/rate_limit", nil)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrConnectivity, err)
	}
	drain(resp)
	return nil
}
