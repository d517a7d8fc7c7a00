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


package geocode

import (
	"context"

	"golang.org/x/time/rate"
)

// requestLimiter spaces out outgoing requests. A nil requestLimiter
// never blocks.
type requestLimiter struct {
	limiter *rate.Limiter
}

func newRequestLimiter(requestsPerSecond float64) *requestLimiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	return &requestLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1)}
}

// wait blocks until a request may be sent or ctx is done. It must be
// called with the caller's context, not one bounded by the
// per-request timeout, since rate.Limiter.Wait gives up immediately
// when the reservation would land past the deadline.
func (l *requestLimiter) wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}
