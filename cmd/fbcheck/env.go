package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/chmdznr/framer-bandwidth-check/internal/config"
	"github.com/chmdznr/framer-bandwidth-check/internal/db"
	"github.com/chmdznr/framer-bandwidth-check/internal/report"
	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

const defaultProject = "default"

// Stored settings
const (
	settingIncludeOptimization = "include_framer_optimization"
	settingTheme               = "theme"
)

var themes = []string{"auto", "color", "mono"}

// env is what every command needs: configuration, the database and the
// project the command works on.
type env struct {
	cfg     *config.Config
	store   *db.DB
	project string
}

func openEnv(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	path := cfg.Storage.DBPath
	if c.IsSet("db") {
		path = c.String("db")
	}
	store, err := db.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &env{cfg: cfg, store: store, project: c.String("project")}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// latestScan returns the last stored analysis of the project
func (e *env) latestScan() (*models.ProjectAnalysis, error) {
	pa, err := e.store.LatestScan(e.project)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("no scan stored for project %q, run 'fbcheck scan' first", e.project)
	}
	return pa, err
}

// includeOptimization reads the stored optimization toggle. nil means unset.
func (e *env) includeOptimization() (*bool, error) {
	v, err := e.store.GetSetting(settingIncludeOptimization)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("invalid stored %s value %q", settingIncludeOptimization, v)
	}
	return &b, nil
}

// formatter builds an output formatter honoring the stored theme
func (e *env) formatter(c *cli.Context) (*report.Formatter, error) {
	format, err := report.ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	f := report.NewFormatter(format)
	f.Writer = c.App.Writer

	theme, err := e.store.GetSetting(settingTheme)
	switch {
	case errors.Is(err, db.ErrNotFound):
	case err != nil:
		return nil, err
	case theme == "mono":
		f.Color = false
	case theme == "color":
		f.Color = true
	}
	return f, nil
}

// validateSetting checks a settings value and returns its normalized form
func validateSetting(key, value string) (string, error) {
	switch key {
	case settingIncludeOptimization:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("%s must be true or false", key)
		}
		return strconv.FormatBool(b), nil
	case settingTheme:
		v := strings.ToLower(value)
		for _, t := range themes {
			if v == t {
				return v, nil
			}
		}
		return "", fmt.Errorf("%s must be one of %s", key, strings.Join(themes, ", "))
	}
	return "", fmt.Errorf("unknown setting %q (valid: %s, %s)", key, settingIncludeOptimization, settingTheme)
}

func success(format string, args ...any) string {
	return color.GreenString(format, args...)
}

func warning(format string, args ...any) string {
	return color.YellowString(format, args...)
}
