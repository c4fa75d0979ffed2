// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Mgrsbot is a Telegram bot that converts Google Maps links to MGRS grid
references and back.

A user picks a direction from the inline keyboard sent on /start and then
sends a Google Maps link (maps.app.goo.gl short links included) or an MGRS
string. The bot replies with the MGRS reference in monospace, or with a
Google Maps search link for the decoded point.

# Usage

	$ mgrsbot [flags...]

By default mgrsbot receives updates with long polling. With -webhook it
registers https://<host>/telegram as the bot's webhook and serves it on
-addr, together with /health and, when DEBUG_TOKEN is set, /debug/.

In polling mode, passing -addr serves /health and /debug/ as well.

# Environment Variables

  - TG_TOKEN: Telegram bot token. TOKEN is accepted as well. Required.
  - TG_SECRET: secret Telegram sends with webhook requests. A random one
    is generated when it is not set.
  - DEBUG_TOKEN: bearer token that unlocks /debug/ endpoints.
  - DOTENV: path of the file with environment variables to load. Defaults to
    .env in the working directory. Variables already set win.

Every flag can also be set with the environment variable named in its usage,
for example SESSION_STORE for -store. An explicit flag wins.

# Session Stores

The -store flag selects where conversion modes are kept:

	mem                   in memory, lost on restart (default)
	file:/path/db.json    JSON file
	sqlite:/path/db       SQLite database
	postgres://...        PostgreSQL
	redis://...           Redis

Sessions expire after -session-ttl without activity.

# Messages

The bot speaks English (en) and Ukrainian (uk), selected with -lang. A YAML
file passed with -messages replaces any of the texts, for example:

	menu: "Pick one:"
	mgrs_result: "MGRS: `{mgrs}`"

# Systemd

When started by systemd with Type=notify, mgrsbot reports readiness once it
receives updates and pings the watchdog if WatchdogSec is set.
*/
package main

import (
	_ "embed"

	"go.gridlink.dev/tools/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
