/*
	VoyageAtlas
	Copyright (c) 2025 The VoyageAtlas Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

//go:build !windows

package atlasapp

import (
	"context"
	"os"
	"os/signal"

	"github.com/voyageatlas/voyageatlas/voyage"
	"golang.org/x/sys/unix"
)

// trapSignalsPosix captures POSIX-only signals.
func trapSignalsPosix(ctx context.Context, shutdown func(string)) {
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, unix.SIGTERM, unix.SIGHUP, unix.SIGQUIT)

	go func() {
		defer signal.Stop(sigchan)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigchan:
				switch sig {
				case unix.SIGQUIT:
					voyage.Log.Warn("SIGQUIT: quitting process immediately")
					_ = voyage.Log.Sync()
					os.Exit(2) //nolint:mnd

				case unix.SIGTERM:
					shutdown("SIGTERM")

				case unix.SIGHUP:
					shutdown("SIGHUP")
				}
			}
		}
	}()
}
