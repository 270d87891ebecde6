//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tablescout/tablescout/internal/cache"
	"github.com/tablescout/tablescout/internal/config"
	"github.com/tablescout/tablescout/internal/model"
)

func TestBuildScrapers_OnlyEnabledPlatforms(t *testing.T) {
	platforms := &config.PlatformsConfig{
		Tabelog:    config.PlatformConfig{Enabled: true, BaseURL: "https://tabelog.com"},
		Omakase:    config.PlatformConfig{Enabled: false},
		Tablecheck: config.PlatformConfig{Enabled: true, BaseURL: "https://www.tablecheck.com"},
		Tableall:   config.PlatformConfig{Enabled: false},
	}
	caches := cache.Open(t.TempDir())

	scrapers := buildScrapers(platforms, nil, nil, caches)

	var got []model.Platform
	for _, s := range scrapers {
		got = append(got, s.Platform())
	}
	assert.Equal(t, []model.Platform{model.PlatformTabelog, model.PlatformTablecheck}, got)
}

func TestPlatformAccounts_SkipsUnconfigured(t *testing.T) {
	platforms := &config.PlatformsConfig{
		Tableall: config.PlatformConfig{
			Enabled: true,
			Account: config.AccountConfig{Email: "member@example.com", Password: "hunter2"},
		},
	}

	accounts := platformAccounts(platforms)

	assert.Len(t, accounts, 1)
	assert.Equal(t, "member@example.com", accounts[model.PlatformTableall].Email)
}
