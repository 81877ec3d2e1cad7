package fetch

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"strings"
)

// RobotsRules holds Disallow prefixes for one user-agent group.
// Disallow: /community/private forbids any path starting with that prefix.
type RobotsRules struct {
	disallowPrefixes []string
}

// Allowed reports whether path may be fetched. Nil or empty rules allow everything.
func (r *RobotsRules) Allowed(path string) bool {
	if r == nil || len(r.disallowPrefixes) == 0 {
		return true
	}
	path = normalizePath(path)
	for _, prefix := range r.disallowPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		return "/" + p
	}
	return p
}

// FetchRobots loads and parses baseURL/robots.txt with the client's headers.
// The fetch itself bypasses any existing rules.
func (c *Client) FetchRobots(ctx context.Context, baseURL, userAgent string) (*RobotsRules, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	u.Path = "/robots.txt"
	u.RawQuery = ""

	saved := c.robots
	c.robots = nil
	body, err := c.Get(ctx, u.String())
	c.robots = saved
	if err != nil {
		return nil, fmt.Errorf("robots.txt: %w", err)
	}
	return ParseRobots([]byte(body), userAgent), nil
}

// UseRobots installs rules for subsequent Get calls. Call before the client is shared.
func (c *Client) UseRobots(rules *RobotsRules) {
	c.robots = rules
}

// ParseRobots collects Disallow lines from the first group whose User-agent is
// "*" or matches userAgent (case-insensitive, substring on the product token).
func ParseRobots(body []byte, userAgent string) *RobotsRules {
	r := &RobotsRules{}
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	var inMatchingBlock, matched bool
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "user-agent:") {
			agent := strings.TrimSpace(line[len("user-agent:"):])
			inMatchingBlock = !matched && agentMatches(agent, userAgent)
			if inMatchingBlock {
				matched = true
			}
			continue
		}
		if inMatchingBlock && strings.HasPrefix(lower, "disallow:") {
			path := strings.TrimSpace(line[len("disallow:"):])
			if path != "" {
				r.disallowPrefixes = append(r.disallowPrefixes, normalizePath(path))
			}
		}
	}
	return r
}

func agentMatches(agent, userAgent string) bool {
	if agent == "*" {
		return true
	}
	return agent != "" && strings.Contains(strings.ToLower(userAgent), strings.ToLower(agent))
}

// PathFromURL returns the path component of rawURL, or "/" if parsing fails.
func PathFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "/"
	}
	return normalizePath(u.Path)
}
