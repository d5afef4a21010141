package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"countryfilter/internal/badge"
	"countryfilter/internal/bridge"
	"countryfilter/internal/classifier"
	"countryfilter/internal/messaging"
	"countryfilter/internal/models"
	"countryfilter/internal/settings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// surface names reported to the engine by the CLI commands
const (
	surfacePopup = "popup"
	surfaceBadge = "background"
)

// request sends one request to the running engine
func (a *app) request(cmd *cobra.Command, action messaging.Action, s *models.Settings) (messaging.Response, error) {
	c, err := a.dial(cmd, surfacePopup)
	if err != nil {
		return messaging.Response{}, err
	}
	defer closeQuietly(c)

	resp, err := c.Request(cmd.Context(), messaging.Request{Action: action, Settings: s})
	if errors.Is(err, messaging.ErrNoReply) {
		return resp, fmt.Errorf("%s: engine did not answer: %w", action, err)
	}
	return resp, err
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show filter counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.request(cmd, messaging.ActionGetStats, nil)
			if err != nil {
				return err
			}
			var st models.Stats
			if resp.Stats != nil {
				st = *resp.Stats
			}
			renderStats(cmd.OutOrStdout(), st, resp.DetectedCountries)
			return nil
		},
	}
}

func newResetStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stats",
		Short: "Zero the filter counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.request(cmd, messaging.ActionResetStats, nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Status)
			return nil
		},
	}
}

func newRescanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rescan",
		Short: "Ask the engine to scan the page again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.request(cmd, messaging.ActionScanLocations, nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Status)
			return nil
		},
	}
}

// settingsEdit holds the flags of `settings set`
type settingsEdit struct {
	enabled    bool
	mode       string
	block      []string
	unblock    []string
	users      []string
	keywords   []string
	addUser    []string
	addKeyword []string
}

func (e *settingsEdit) apply(cmd *cobra.Command, s models.Settings) (models.Settings, error) {
	for _, c := range append(slices.Clone(e.block), e.unblock...) {
		if !classifier.InCatalog(c) {
			return s, fmt.Errorf("unknown country %q (see `countryfilter countries`)", c)
		}
	}

	out := s.Clone()
	flags := cmd.Flags()

	if flags.Changed("enabled") {
		out.Enabled = e.enabled
	}
	if flags.Changed("mode") {
		mode, err := models.ParseFilterMode(e.mode)
		if err != nil {
			return out, err
		}
		out.FilterMode = mode
	}
	for _, c := range e.block {
		out.BlockedCountries[c] = true
	}
	for _, c := range e.unblock {
		out.BlockedCountries[c] = false
	}
	if flags.Changed("users") {
		out.BlockedUsers = e.users
	}
	out.BlockedUsers = append(out.BlockedUsers, e.addUser...)
	if flags.Changed("keywords") {
		out.BlockedKeywords = e.keywords
	}
	out.BlockedKeywords = append(out.BlockedKeywords, e.addKeyword...)

	return settings.Normalize(out), nil
}

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the filter settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.request(cmd, messaging.ActionGetSettings, nil)
			if err != nil {
				return err
			}
			if resp.Settings == nil {
				return messaging.ErrMissingSettings
			}
			renderSettings(cmd.OutOrStdout(), *resp.Settings)
			return nil
		},
	}

	edit := &settingsEdit{}
	set := &cobra.Command{
		Use:   "set",
		Short: "Change individual settings",
		Example: `  countryfilter settings set --block India --block Pakistan
  countryfilter settings set --mode removed --add-user spammer
  countryfilter settings set --enabled=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.modifySettings(cmd, func(s models.Settings) (models.Settings, error) {
				return edit.apply(cmd, s)
			})
		},
	}
	f := set.Flags()
	f.BoolVar(&edit.enabled, "enabled", true, "turn filtering on or off")
	f.StringVar(&edit.mode, "mode", "", fmt.Sprintf("filter mode, one of %v", models.FilterModes))
	f.StringArrayVar(&edit.block, "block", nil, "block a country (repeatable)")
	f.StringArrayVar(&edit.unblock, "unblock", nil, "unblock a country (repeatable)")
	f.StringSliceVar(&edit.users, "users", nil, "replace the blocked user list")
	f.StringSliceVar(&edit.keywords, "keywords", nil, "replace the blocked keyword list")
	f.StringArrayVar(&edit.addUser, "add-user", nil, "block a user (repeatable)")
	f.StringArrayVar(&edit.addKeyword, "add-keyword", nil, "block a keyword (repeatable)")

	blockAll := &cobra.Command{
		Use:   "block-all",
		Short: "Block every selectable country",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.modifySettings(cmd, func(s models.Settings) (models.Settings, error) {
				return settings.BlockAll(s), nil
			})
		},
	}

	clearCountries := &cobra.Command{
		Use:   "clear-countries",
		Short: "Unblock every country",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.modifySettings(cmd, func(s models.Settings) (models.Settings, error) {
				return settings.ClearCountries(s), nil
			})
		},
	}

	cmd.AddCommand(show, set, blockAll, clearCountries)
	return cmd
}

// editAttempts bounds retries when another surface saves in between.
const editAttempts = 3

// modifySettings reads the engine's settings, edits them and sends them
// back over one connection. The save is conditional on the version read,
// so a concurrent edit is retried on fresh settings instead of lost.
func (a *app) modifySettings(cmd *cobra.Command, edit func(models.Settings) (models.Settings, error)) error {
	c, err := a.dial(cmd, surfacePopup)
	if err != nil {
		return err
	}
	defer closeQuietly(c)

	ctx := cmd.Context()
	for attempt := 1; ; attempt++ {
		resp, err := c.Request(ctx, messaging.Request{Action: messaging.ActionGetSettings})
		if err != nil {
			return err
		}
		if resp.Settings == nil {
			return messaging.ErrMissingSettings
		}
		current := *resp.Settings

		next, err := edit(current)
		if err != nil {
			return err
		}
		resp, err = c.Request(ctx, messaging.Request{
			Action:          messaging.ActionUpdateSettings,
			Settings:        &next,
			ExpectedVersion: current.Version,
		})
		if errors.Is(err, settings.ErrVersionConflict) && attempt < editAttempts {
			log.Debug().Int("attempt", attempt).Msg("settings changed concurrently, retrying")
			continue
		}
		if err != nil {
			return err
		}
		if resp.Settings != nil {
			renderSettings(cmd.OutOrStdout(), *resp.Settings)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), resp.Status)
		}
		return nil
	}
}

func newBadgeCmd(a *app) *cobra.Command {
	var nav bool

	cmd := &cobra.Command{
		Use:   "badge",
		Short: "Follow the hidden-item badge",
		Long: `Badge stays connected to the engine and prints the badge text every
time it changes. An empty badge is shown as "-".

With --nav, page loads are read from stdin, one per line: "URL" for a
finished load or "loading URL" for one in progress. A finished load of
twitter.com or x.com clears the badge.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var pages io.Reader
			if nav {
				pages = cmd.InOrStdin()
			}
			return a.followBadge(cmd.Context(), cmd.OutOrStdout(), pages)
		},
	}
	cmd.Flags().BoolVar(&nav, "nav", false, "read page loads from stdin")
	return cmd
}

// navigation is one page-load line
type navigation struct {
	url      string
	complete bool
}

func parseNavigation(line string) (navigation, bool) {
	fields := strings.Fields(line)
	switch {
	case len(fields) == 1:
		return navigation{url: fields[0], complete: true}, true
	case len(fields) == 2 && fields[0] == "loading":
		return navigation{url: fields[1]}, true
	}
	return navigation{}, false
}

func (a *app) followBadge(ctx context.Context, out io.Writer, pages io.Reader) error {
	c, err := bridge.New(a.cfg.BridgeURL(), bridge.Options{
		Surface: surfaceBadge,
		Timeout: a.cfg.ReplyTimeout,
	})
	if err != nil {
		return err
	}
	updates := c.Subscribe()

	ctrl := &badge.Controller{OnChange: func(s badge.State) {
		text := s.Text
		if text == "" {
			text = "-"
		}
		fmt.Fprintln(out, titleStyle.Render(text))
	}}

	go func() {
		if err := c.Run(ctx); err != nil {
			log.Warn().Err(err).Msg("bridge client stopped")
		}
	}()

	return followUpdates(ctx, ctrl, updates, readNavigations(ctx, pages))
}

// readNavigations streams page loads from r. A nil r yields a channel
// that never delivers.
func readNavigations(ctx context.Context, r io.Reader) <-chan navigation {
	out := make(chan navigation)
	if r == nil {
		return out
	}
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			n, ok := parseNavigation(sc.Text())
			if !ok {
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func followUpdates(ctx context.Context, ctrl *badge.Controller, updates <-chan messaging.Outbound, navs <-chan navigation) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case o := <-updates:
			ctrl.Broadcast(o)
		case n, ok := <-navs:
			if !ok {
				navs = nil
				continue
			}
			ctrl.Navigated(n.url, n.complete)
		}
	}
}
