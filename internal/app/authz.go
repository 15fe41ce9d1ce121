package app

import "ecojourney/pkg/domain"

// Action names a capability checked against the user's role.
type Action string

const (
	ActionContentCreate  Action = "content:create"
	ActionContentViewAll Action = "content:view_all"
	ActionContentReview  Action = "content:review"
	ActionContentPublish Action = "content:publish"
	ActionContentArchive Action = "content:archive"
	ActionCategoryManage Action = "category:manage"
	ActionUserManage     Action = "user:manage"
)

var roleActions = map[domain.RoleName]map[Action]bool{
	domain.RoleContentProducer: {
		ActionContentCreate: true,
	},
	domain.RoleContentManager: {
		ActionContentCreate:  true,
		ActionContentViewAll: true,
		ActionContentReview:  true,
		ActionContentPublish: true,
		ActionCategoryManage: true,
	},
	domain.RoleAdmin: {
		ActionContentCreate:  true,
		ActionContentViewAll: true,
		ActionContentReview:  true,
		ActionContentPublish: true,
		ActionContentArchive: true,
		ActionCategoryManage: true,
		ActionUserManage:     true,
	},
}

// Can reports whether the role may perform the action.
func Can(role domain.RoleName, action Action) bool {
	return roleActions[role][action]
}
