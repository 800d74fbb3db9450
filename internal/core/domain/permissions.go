package domain

// EffectivePermissions computes the permissions a user holds in a channel,
// following Discord's resolution order: base role permissions, then the
// @everyone overwrite, then role overwrites, then the member overwrite.
// Owners and administrators hold every permission regardless of overwrites.
func EffectivePermissions(g *Guild, ch *Channel, userID string, roleIDs []string) Permissions {
	if g.OwnerID == userID {
		return AllPermissions
	}

	held := make(map[string]bool, len(roleIDs))
	for _, id := range roleIDs {
		held[id] = true
	}

	var base Permissions
	for _, r := range g.Roles {
		if r.ID == g.ID || held[r.ID] {
			base |= r.Permissions
		}
	}
	if base&PermAdministrator != 0 {
		return AllPermissions
	}

	for _, ow := range ch.PermissionOverwrites {
		if ow.Type == OverwriteRole && ow.ID == g.ID {
			base = base&^ow.Deny | ow.Allow
		}
	}

	var allow, deny Permissions
	for _, ow := range ch.PermissionOverwrites {
		if ow.Type == OverwriteRole && ow.ID != g.ID && held[ow.ID] {
			allow |= ow.Allow
			deny |= ow.Deny
		}
	}
	base = base&^deny | allow

	for _, ow := range ch.PermissionOverwrites {
		if ow.Type == OverwriteMember && ow.ID == userID {
			base = base&^ow.Deny | ow.Allow
		}
	}

	return base
}
