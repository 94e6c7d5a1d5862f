package console

import "strings"

type ConsoleOpt func(*Console)

// WithAdmins lets the named participants run administrative commands.
func WithAdmins(names ...string) ConsoleOpt {
	return func(c *Console) {
		for _, n := range names {
			c.admins[strings.ToLower(n)] = true
		}
	}
}

func WithBanner(banner string) ConsoleOpt {
	return func(c *Console) {
		c.banner = banner
	}
}
