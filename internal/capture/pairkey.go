// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package capture

import "net/netip"

// PairKey identifies a connection or flow independent of direction: the two
// endpoints ordered lexically, so both sides of a conversation map to the
// same key.
func PairKey(a, b netip.AddrPort) string {
	as, bs := a.String(), b.String()
	if as <= bs {
		return as + "|" + bs
	}
	return bs + "|" + as
}
