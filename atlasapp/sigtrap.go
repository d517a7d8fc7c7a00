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

package atlasapp

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/voyageatlas/voyageatlas/voyage"
)

// TrapSignals returns a context that is canceled on the first
// interrupt or termination signal, so that in-flight work such as
// geocoding requests can end and resources can be released. A second
// interrupt exits the process immediately.
func TrapSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	var once sync.Once
	shutdown := func(reason string) {
		once.Do(func() {
			voyage.Log.Warn(reason + ": shutting down")
			cancel()
		})
	}
	trapSignalsCrossPlatform(ctx, shutdown)
	trapSignalsPosix(ctx, shutdown)
	return ctx, cancel
}

// trapSignalsCrossPlatform captures SIGINT. A second interrupt signal
// will exit the process immediately.
func trapSignalsCrossPlatform(ctx context.Context, shutdown func(string)) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	go func() {
		defer signal.Stop(sig)
		for i := 0; ; i++ {
			select {
			case <-sig:
			case <-ctx.Done():
				if i == 0 {
					return
				}
				// already shutting down; keep listening for a force quit
				<-sig
			}

			if i > 0 {
				voyage.Log.Error("SIGINT: force quit")
				_ = voyage.Log.Sync()
				os.Exit(2) //nolint:mnd
			}
			shutdown("SIGINT")
		}
	}()
}
