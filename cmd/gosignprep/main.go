/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Command gosignprep prepares documents for e-signature: it manages envelope
// directories, places fields for recipients, reviews and exports proofs, and
// hands finished envelopes off to the backend service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gosignprep/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	fctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	telemetry.Default().Flush(fctx)
	cancel()
	telemetry.Default().Close()
	if err != nil {
		os.Exit(1)
	}
}
