// Package badge is the background surface: it turns hidden-count
// notifications into badge text.
package badge

import (
	"net/url"
	"strconv"
	"strings"
	"sync"

	"countryfilter/internal/messaging"

	"github.com/rs/zerolog/log"
)

// Color is the badge background.
const Color = "#FF4444"

// State is what the badge currently shows.
type State struct {
	Text  string
	Color string
}

// monitoredHosts are the sites whose fresh page loads clear the badge
var monitoredHosts = []string{"twitter.com", "x.com"}

// Controller tracks the badge. OnChange, if set, is called with every new
// state.
type Controller struct {
	OnChange func(State)

	mu    sync.Mutex
	state State
}

// Text renders a count the way the badge shows it: empty for zero.
func Text(count uint64) string {
	if count == 0 {
		return ""
	}
	return strconv.FormatUint(count, 10)
}

// Update applies a hidden count.
func (c *Controller) Update(count uint64) {
	c.set(State{Text: Text(count), Color: Color})
}

// Broadcast lets the controller receive engine notifications in-process.
func (c *Controller) Broadcast(o messaging.Outbound) {
	if o.Action != messaging.ActionUpdateBadge {
		return
	}
	c.Update(o.Count)
}

// Navigated clears the badge once a monitored page finished loading.
func (c *Controller) Navigated(rawURL string, complete bool) {
	if !complete || !Monitored(rawURL) {
		return
	}
	c.mu.Lock()
	color := c.state.Color
	c.mu.Unlock()
	c.set(State{Text: "", Color: color})
}

// State returns the current badge.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) set(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	fn := c.OnChange
	c.mu.Unlock()

	if changed {
		log.Debug().Str("text", s.Text).Msg("badge: updated")
	}
	if fn != nil {
		fn(s)
	}
}

// Monitored reports whether rawURL belongs to one of the filtered sites.
func Monitored(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		// bare strings are matched like the extension did, by substring
		for _, h := range monitoredHosts {
			if strings.Contains(rawURL, h) {
				return true
			}
		}
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range monitoredHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
