// Package rbac provides role-based checks for room moderation.
package rbac

import "github.com/dkeye/PartyRoom/internal/domain"

// Action is a moderation or room-control request made by one participant.
type Action string

const (
	ActionMute   Action = "mute"
	ActionBlock  Action = "block"
	ActionReport Action = "report"
	ActionKick   Action = "kick"

	// Admin-only room controls.
	ActionLockSeat   Action = "lock_seat"
	ActionManageRoom Action = "manage_room"
)

// permissionMatrix maps roles to the actions they may perform on others.
// Admins are not listed: they may perform anything.
var permissionMatrix = map[domain.Role]map[Action]bool{
	domain.RoleModerator: {
		ActionMute:   true,
		ActionBlock:  true,
		ActionReport: true,
	},
	domain.RoleUser: {
		ActionBlock:  true,
		ActionReport: true,
	},
}

// HasPermission checks if a role may perform an action, ignoring who the target is.
func HasPermission(role domain.Role, action Action) bool {
	if role == domain.RoleAdmin {
		return true
	}
	perms, ok := permissionMatrix[role]
	if !ok {
		return false
	}
	return perms[action]
}

// CanPerformAction reports whether actor may apply action to target.
// Nobody can target themself, whatever their role.
func CanPerformAction(action Action, actor, target domain.User) bool {
	if actor.ID == target.ID {
		return false
	}
	return HasPermission(actor.Role, action)
}

// ParseAction returns the moderation action for a wire name and whether it is known.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionMute, ActionBlock, ActionReport, ActionKick:
		return a, true
	}
	return "", false
}
