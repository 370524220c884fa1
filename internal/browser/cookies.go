package browser

import (
	"math"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"

	"github.com/lkschedule/schedule-sync/internal/storage"
)

// toStored converts a browser cookie into its persisted form.
func toStored(c *network.Cookie) storage.Cookie {
	expires := c.Expires
	if c.Session {
		expires = -1
	}
	return storage.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  expires,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: string(c.SameSite),
	}
}

// toParam converts a persisted cookie into a SetCookies parameter. Session cookies
// get no expiry.
func toParam(c storage.Cookie) *network.CookieParam {
	p := &network.CookieParam{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
	}
	if c.SameSite != "" {
		p.SameSite = network.CookieSameSite(c.SameSite)
	}
	if c.Expires > 0 {
		sec, frac := math.Modf(c.Expires)
		t := cdp.TimeSinceEpoch(time.Unix(int64(sec), int64(frac*1e9)))
		p.Expires = &t
	}
	return p
}

// expired reports whether a persisted cookie is past its expiry at now.
func expired(c storage.Cookie, now time.Time) bool {
	return c.Expires > 0 && c.Expires < float64(now.Unix())
}
