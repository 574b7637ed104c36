// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

/*
Package sync pulls access events from the panel gateway into the backend.

One cycle runs the following steps for every active panel, in order:

 1. Resolve: decrypt the panel password (credentials.Resolver)
 2. Window: compute [cursor - overlap, now + skew], or [now - lookback, now + skew]
    on the first cycle of a panel
 3. Fetch: query face, QR and fingerprint events concurrently; a modality the
    gateway reports as failed contributes nothing
 4. Normalize: map raw records to models.AccessEvent, dropping malformed ones
 5. Advance: move the panel cursor to the newest event, or to the window
    instant when there were none
 6. Forward: post each event to the backend, fetching its capture first
    unless it came from a QR code

Manager runs cycles forever with a fixed pause in between. Errors end the
cycle, never the loop. Cursors live in memory only, so a restart begins again
with the lookback window.

Panels are isolated from each other by default: a failing panel is reported
in the CycleReport and the next panel still runs. Setting
sync.abort_cycle_on_panel_error ends the cycle at the first failing panel
instead.

The overlap band means events near the cursor are fetched twice. The forward
ledger (internal/ledger) remembers idempotency keys so they are posted once.
*/
package sync
