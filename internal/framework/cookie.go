package framework

import (
	"net/http"
	"strings"
	"time"
)

// Cookie is a framework-native response cookie.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	Expires  time.Time
	Secure   bool
	HttpOnly bool
}

// NewCookie creates a cookie with the given name and value. Path, domain
// and expiry are unset.
func NewCookie(name, value string) *Cookie {
	return &Cookie{Name: name, Value: value}
}

// String formats the cookie as a Set-Cookie header value. Attributes are
// only appended if the cookie sets them.
func (c *Cookie) String() string {
	var b strings.Builder

	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)

	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	if !c.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires.UTC().Format(http.TimeFormat))
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}

	return b.String()
}
