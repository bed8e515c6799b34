// Package client classifies API callers by their User-Agent header.
package client

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Platform is the broad family a client belongs to.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
	PlatformBot     Platform = "bot"
	PlatformUnknown Platform = "unknown"
)

// Info is the classification of one User-Agent.
type Info struct {
	Platform Platform `json:"platform"`
	Name     string   `json:"name"`
	Version  string   `json:"version,omitempty"`
}

//go:embed clients.yml
var rulesFile []byte

type rule struct {
	Regex    string   `yaml:"regex"`
	Platform Platform `yaml:"platform"`
	Name     string   `yaml:"name"`
	Version  string   `yaml:"version"`

	compiled *pcre.Regexp
}

var (
	rules     []rule
	rulesOnce sync.Once
)

func loadRules() []rule {
	rulesOnce.Do(func() {
		var parsed []rule
		if err := yaml.Unmarshal(rulesFile, &parsed); err != nil {
			slog.Error("Failed to parse client rules", slog.Any("error", err))
			return
		}
		for _, r := range parsed {
			re, err := pcre.Compile(r.Regex)
			if err != nil {
				slog.Error("Skipping invalid client rule", slog.String("regex", r.Regex), slog.Any("error", err))
				continue
			}
			r.compiled = re
			rules = append(rules, r)
		}
	})
	return rules
}

// Parse classifies a User-Agent string. Unmatched or empty input yields PlatformUnknown.
func Parse(userAgent string) Info {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return Info{Platform: PlatformUnknown, Name: "Unknown"}
	}

	for _, r := range loadRules() {
		matches := r.compiled.FindStringSubmatch(userAgent)
		if len(matches) == 0 {
			continue
		}
		return Info{
			Platform: r.Platform,
			Name:     expand(r.Name, matches),
			Version:  expand(r.Version, matches),
		}
	}
	return Info{Platform: PlatformUnknown, Name: "Unknown"}
}

// expand replaces $1, $2, etc. with the matching capture groups.
func expand(template string, matches []string) string {
	if template == "" || len(matches) < 2 {
		return template
	}
	for i := len(matches) - 1; i >= 1; i-- {
		template = strings.ReplaceAll(template, fmt.Sprintf("$%d", i), matches[i])
	}
	return template
}
